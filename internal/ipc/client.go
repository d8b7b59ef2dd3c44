package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// dialTimeout bounds how long CLI commands wait for a daemon socket.
const dialTimeout = 2 * time.Second

// Client talks JSON-RPC to the daemon over its Unix socket.
type Client struct {
	conn net.Conn
	rc   *rpc.Client
}

// Dial opens a connection to the daemon control socket.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		rc:   rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)),
	}, nil
}

// Close tears down the RPC client and its socket connection.
func (c *Client) Close() error {
	if c.rc != nil {
		_ = c.rc.Close()
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// call issues one RPC against the daemon service and decodes the response.
func call[Resp, Req any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.rc.Call("Stagehand."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start asks the daemon to begin workflow processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop asks the daemon to halt workflow processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status fetches the daemon's current state.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Submit enqueues an install request for a build tree.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	return call[SubmitResponse](c, "Submit", req)
}

// JobsList returns registry jobs optionally filtered by statuses.
func (c *Client) JobsList(statuses []string) (*JobsListResponse, error) {
	return call[JobsListResponse](c, "JobsList", JobsListRequest{Statuses: statuses})
}

// JobsDescribe returns details for a single job.
func (c *Client) JobsDescribe(id int64) (*JobsDescribeResponse, error) {
	return call[JobsDescribeResponse](c, "JobsDescribe", JobsDescribeRequest{ID: id})
}

// JobsClear removes jobs in the given scope.
func (c *Client) JobsClear(scope string) (*JobsClearResponse, error) {
	return call[JobsClearResponse](c, "JobsClear", JobsClearRequest{Scope: scope})
}

// JobsRetry retries failed or review jobs.
func (c *Client) JobsRetry(ids []int64) (*JobsRetryResponse, error) {
	return call[JobsRetryResponse](c, "JobsRetry", JobsRetryRequest{IDs: ids})
}

// LogTail reads a window of the daemon log.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// RegistryHealth returns aggregate registry diagnostics.
func (c *Client) RegistryHealth() (*RegistryHealthResponse, error) {
	return call[RegistryHealthResponse](c, "RegistryHealth", RegistryHealthRequest{})
}

// DatabaseHealth fetches schema and integrity diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}
