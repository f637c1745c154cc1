// Package tlog wraps the gRPC clients for the append-only transparency log
// (Trillian) that veracity submits image hashes to.
package tlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/trillian"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Client bundles the admin and log RPC clients for one Trillian instance.
// It is safe for concurrent use.
type Client struct {
	conn   *grpc.ClientConn
	admin  trillian.TrillianAdminClient
	log    trillian.TrillianLogClient
	logger *slog.Logger
}

// NewClient connects to the Trillian instance at host (host:port).
func NewClient(host string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := grpc.NewClient(host, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing trillian at %s: %w", host, err)
	}
	return &Client{
		conn:   conn,
		admin:  trillian.NewTrillianAdminClient(conn),
		log:    trillian.NewTrillianLogClient(conn),
		logger: logger.With("system", "tlog"),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ListTrees returns all trees known to the instance, including deleted ones.
func (c *Client) ListTrees(ctx context.Context) ([]*trillian.Tree, error) {
	resp, err := c.admin.ListTrees(ctx, &trillian.ListTreesRequest{ShowDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("listing trees: %w", err)
	}
	return resp.Tree, nil
}

// CreateTree creates and initializes a new active LOG tree.
func (c *Client) CreateTree(ctx context.Context, name, description string) (*trillian.Tree, error) {
	tree, err := c.admin.CreateTree(ctx, &trillian.CreateTreeRequest{
		Tree: &trillian.Tree{
			TreeState:       trillian.TreeState_ACTIVE,
			TreeType:        trillian.TreeType_LOG,
			DisplayName:     name,
			Description:     description,
			MaxRootDuration: durationpb.New(time.Hour),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating tree: %w", err)
	}
	// New trees must be initialized through the log client before use.
	if _, err := c.log.InitLog(ctx, &trillian.InitLogRequest{LogId: tree.TreeId}); err != nil {
		return nil, fmt.Errorf("initializing tree %d: %w", tree.TreeId, err)
	}
	c.logger.Info("created log tree", "treeID", tree.TreeId, "name", name)
	return tree, nil
}

// QueueLeaf submits a leaf to the given tree. Re-queueing a leaf that is
// already present is not an error; the existing leaf is returned.
func (c *Client) QueueLeaf(ctx context.Context, treeID int64, value, extra []byte) (*trillian.LogLeaf, error) {
	resp, err := c.log.QueueLeaf(ctx, &trillian.QueueLeafRequest{
		LogId: treeID,
		Leaf: &trillian.LogLeaf{
			LeafValue: value,
			ExtraData: extra,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queueing leaf: %w", err)
	}
	queued := resp.GetQueuedLeaf()
	if queued == nil || queued.GetLeaf() == nil {
		return nil, fmt.Errorf("queueing leaf: empty response")
	}
	if st := status.FromProto(queued.GetStatus()); st.Code() == codes.AlreadyExists {
		c.logger.Debug("leaf already queued", "treeID", treeID)
	} else if st.Code() != codes.OK {
		return nil, fmt.Errorf("queueing leaf: %s", st.Err())
	}
	c.logger.Debug("queued leaf",
		"treeID", treeID,
		"leafIndex", queued.Leaf.LeafIndex,
		"identityHash", fmt.Sprintf("%x", queued.Leaf.LeafIdentityHash))
	return queued.Leaf, nil
}
