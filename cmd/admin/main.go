// Package main - служебные команды: миграции, первый суперпользователь, тестовые покупки
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glkeru/loyalty/pay2win/internal/app"
	"github.com/glkeru/loyalty/pay2win/internal/config"
	kafka "github.com/glkeru/loyalty/pay2win/internal/external/kafka"
	"github.com/glkeru/loyalty/pay2win/internal/logging"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "pay2win-admin",
		Short:         "Pay2Win ledger maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	cmd.AddCommand(migrateCmd(&configPath))
	cmd.AddCommand(superuserCmd(&configPath))
	cmd.AddCommand(sendPurchaseCmd(&configPath))
	return cmd
}

// withApp - конфиг, лог и сервисы для одной команды
func withApp(configPath string, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create ledger tables",
		Long:  "Create ledger tables. The embedded store migrates itself on open; for postgres the schema is applied explicitly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				if a.LedgerDB != nil {
					if err := a.LedgerDB.Migrate(ctx); err != nil {
						return err
					}
				}
				a.Logger.Info("Migration finished", zap.String("store", a.Config.Store))
				return nil
			})
		},
	}
}

func superuserCmd(configPath *string) *cobra.Command {
	var req services.RegisterRequest
	var password string
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create the initial superuser account",
		Long:  "Create the initial superuser account. The password may also be passed in PAY2WIN_SUPERUSER_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PAY2WIN_SUPERUSER_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("env PAY2WIN_SUPERUSER_PASSWORD is not set")
			}
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				account, err := a.Accounts.CreateSuperuser(ctx, req, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "superuser %s created with id %d\n", account.Utorid, account.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Utorid, "utorid", "", "utorid")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "university email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("utorid")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// sendPurchaseCmd кладет покупку в топик, как это делает кассовый терминал
func sendPurchaseCmd(configPath *string) *cobra.Command {
	var msg services.PurchaseMessage
	var spent string
	cmd := &cobra.Command{
		Use:   "send-purchase",
		Short: "Publish a purchase to the POS topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(spent)
			if err != nil {
				return fmt.Errorf("spent is not a number: %w", err)
			}
			msg.Spent = amount
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err = cfg.ValidateKafka(); err != nil {
				return err
			}
			body, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			writer := kafka.NewPurchaseWriter(cfg.Kafka.BrokerList(), cfg.Kafka.Topic)
			defer writer.Close()
			if err = writer.Send(cmd.Context(), msg.Utorid, body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purchase for %s sent to %s\n", msg.Utorid, cfg.Kafka.Topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&msg.Utorid, "utorid", "", "customer utorid")
	cmd.Flags().StringVar(&spent, "spent", "", "dollars spent")
	cmd.Flags().StringVar(&msg.Cashier, "cashier", "", "cashier utorid")
	cmd.Flags().Int64SliceVar(&msg.PromotionIDs, "promotion", nil, "one-time promotion id (repeatable)")
	cmd.Flags().StringVar(&msg.Remark, "remark", "", "remark")
	_ = cmd.MarkFlagRequired("utorid")
	_ = cmd.MarkFlagRequired("spent")
	_ = cmd.MarkFlagRequired("cashier")
	return cmd
}
