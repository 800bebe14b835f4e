package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping probes daemon liveness and returns its PID.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Inkwell.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Inkwell.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Inkwell.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Inkwell.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobSubmit creates a new job from the given preferences.
func (c *Client) JobSubmit(req JobSubmitRequest) (*JobSubmitResponse, error) {
	var resp JobSubmitResponse
	if err := c.client.Call("Inkwell.JobSubmit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns jobs optionally filtered by statuses or owner.
func (c *Client) JobList(req JobListRequest) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Inkwell.JobList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDescribe returns details for a single job.
func (c *Client) JobDescribe(id string) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	if err := c.client.Call("Inkwell.JobDescribe", JobDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCancel flags a job for cancellation.
func (c *Client) JobCancel(id string) (*JobCancelResponse, error) {
	var resp JobCancelResponse
	if err := c.client.Call("Inkwell.JobCancel", JobCancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDecide resolves a job's pending title decision.
func (c *Client) JobDecide(jobID, choice string) (*JobDecideResponse, error) {
	var resp JobDecideResponse
	req := JobDecideRequest{JobID: jobID, Choice: choice}
	if err := c.client.Call("Inkwell.JobDecide", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobEvents fetches progress events after a sequence cursor.
func (c *Client) JobEvents(req JobEventsRequest) (*JobEventsResponse, error) {
	var resp JobEventsResponse
	if err := c.client.Call("Inkwell.JobEvents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobsHealth returns job diagnostics.
func (c *Client) JobsHealth() (*JobsHealthResponse, error) {
	var resp JobsHealthResponse
	if err := c.client.Call("Inkwell.JobsHealth", JobsHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Inkwell.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
