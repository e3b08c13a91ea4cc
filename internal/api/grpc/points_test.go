package grpc

import (
	context "context"
	"net"
	"testing"

	"github.com/glkeru/loyalty/pay2win/internal/db"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	model "github.com/glkeru/loyalty/pay2win/internal/models"
	services "github.com/glkeru/loyalty/pay2win/internal/services"
	uuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	status "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newPointsClient(t *testing.T) (*PointsClient, *db.EmbeddedDB) {
	t.Helper()
	store, err := db.NewEmbeddedDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	ledger := services.NewLedgerService(zap.NewNop(), store, store, nil, nil)
	RegisterPointsServer(server, NewPointsService(ledger, zap.NewNop()))
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPointsClient(conn), store
}

func TestPointsGetBalance(t *testing.T) {
	client, store := newPointsClient(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context, tx interf.LedgerTx) error {
		account := model.Account{Utorid: "smithj12", Name: "John", Email: "smithj12" + model.EmailDomain,
			Role: model.RoleRegular, Points: 75}
		if err := tx.CreateAccount(ctx, &account); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &model.Transaction{
			Utorid: "smithj12", Type: model.TnxAdjustment, Amount: 75, CreatedBy: "mgr00001", PromotionIDs: []int64{}})
	})
	require.NoError(t, err)

	points, err := client.GetBalance(ctx, "smithj12")
	require.NoError(t, err)
	require.Equal(t, int64(75), points)

	_, err = client.GetBalance(ctx, "nobody01")
	require.Equal(t, codes.NotFound, status.Code(err))
	_, err = client.GetBalance(ctx, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	history, err := client.ListTransactions(ctx, "smithj12")
	require.NoError(t, err)
	require.Equal(t, float64(1), history.Fields["count"].GetNumberValue())
	results := history.Fields["results"].GetListValue().GetValues()
	require.Len(t, results, 1)
	require.Equal(t, "adjustment", results[0].GetStructValue().Fields["type"].GetStringValue())
}
