// Package grpc - внутренний API баланса и истории транзакций.
// Сообщения - стандартные типы protobuf, сгенерированные заглушки не нужны.
package grpc

import (
	context "context"
	"encoding/json"
	"errors"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	services "github.com/glkeru/loyalty/pay2win/internal/services"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "pay2win.points.v1.Points"

const (
	getBalanceMethod       = "/" + ServiceName + "/GetBalance"
	listTransactionsMethod = "/" + ServiceName + "/ListTransactions"
)

type PointsServer interface {
	GetBalance(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	ListTransactions(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBalance", Handler: getBalanceHandler},
		{MethodName: "ListTransactions", Handler: listTransactionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pay2win/points/v1/points.proto",
}

func RegisterPointsServer(s grpc.ServiceRegistrar, srv PointsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getBalanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointsServer).GetBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getBalanceMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PointsServer).GetBalance(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listTransactionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointsServer).ListTransactions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listTransactionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PointsServer).ListTransactions(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// PointsClient - клиент для других сервисов
type PointsClient struct {
	cc grpc.ClientConnInterface
}

func NewPointsClient(cc grpc.ClientConnInterface) *PointsClient {
	return &PointsClient{cc}
}

func (c *PointsClient) GetBalance(ctx context.Context, utorid string, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, getBalanceMethod, wrapperspb.String(utorid), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *PointsClient) ListTransactions(ctx context.Context, utorid string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listTransactionsMethod, wrapperspb.String(utorid), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type PointsService struct {
	ledger *services.LedgerService
	logger *zap.Logger
}

func NewPointsService(ledger *services.LedgerService, logger *zap.Logger) *PointsService {
	return &PointsService{ledger, logger}
}

func (p *PointsService) Log(method string, err error) {
	p.logger.Error("gRPC",
		zap.String("service", method),
		zap.Error(err),
	)
}

// Баланс
func (p *PointsService) GetBalance(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "utorid is required")
	}
	points, err := p.ledger.GetBalance(ctx, in.GetValue())
	if err != nil {
		return nil, p.status("GetBalance", err)
	}
	return wrapperspb.Int64(points), nil
}

// История транзакций, последние сверху
func (p *PointsService) ListTransactions(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "utorid is required")
	}
	owner := model.Account{Utorid: in.GetValue()}
	list, err := p.ledger.ListOwnTransactions(ctx, owner, model.TransactionFilter{Page: model.Page{Limit: model.MaxLimit}})
	if err != nil {
		return nil, p.status("ListTransactions", err)
	}
	// через JSON, чтобы поля совпадали с REST API
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, p.status("ListTransactions", err)
	}
	var fields map[string]any
	if err = json.Unmarshal(raw, &fields); err != nil {
		return nil, p.status("ListTransactions", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, p.status("ListTransactions", err)
	}
	return out, nil
}

func (p *PointsService) status(method string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, model.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, model.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	}
	p.Log(method, err)
	return status.Error(codes.Internal, "internal error")
}
