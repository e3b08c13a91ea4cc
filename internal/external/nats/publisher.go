// Package nats - уведомления о проведенных транзакциях в NATS
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/nats-io/nats.go"
)

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher отправляет транзакцию в <subject>.<type>, например pay2win.transactions.purchase,
// а токены сброса пароля в resetSubject для почтового сервиса
type Publisher struct {
	nc           conn
	close        func()
	subject      string
	resetSubject string
}

// ResetMessage - токен сброса пароля для отправки владельцу
type ResetMessage struct {
	Utorid     string    `json:"utorid"`
	Email      string    `json:"email"`
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func NewPublisher(url, subject, resetSubject string) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("env PAY2WIN_NATS_URL is not set")
	}
	nc, err := nats.Connect(url,
		nats.Name("pay2win-ledger"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{nc: nc, close: nc.Close, subject: subject, resetSubject: resetSubject}, nil
}

func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

func (p *Publisher) Subject(tnx model.Transaction) string {
	return p.subject + "." + string(tnx.Type)
}

func (p *Publisher) TransactionCommitted(ctx context.Context, tnx model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(tnx)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.Subject(tnx), data)
}

func (p *Publisher) ResetRequested(ctx context.Context, account model.Account, token string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.resetSubject == "" {
		return fmt.Errorf("reset subject is not set")
	}
	data, err := json.Marshal(ResetMessage{
		Utorid:     account.Utorid,
		Email:      account.Email,
		ResetToken: token,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.resetSubject, data)
}
