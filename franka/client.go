package franka

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/frankahw/frankahw/logging"
)

// Client talks to the robot controller over its TCP command port. All requests are
// serialized on one connection; every request waits for its response.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	requestID uint32
	mode      ControllerMode
	closed    bool
	logger    logging.Logger
}

var _ Robot = (*Client)(nil)

// Connect dials the controller at address and performs the version handshake. The command
// port is added when address has none.
func Connect(ctx context.Context, address string, logger logging.Logger) (*Client, error) {
	if address == "" {
		return nil, errors.New("no robot address given")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultCommandPort)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to robot at %s", address)
	}

	c := NewClientFromConn(conn, logger)
	if err := c.handshake(ctx); err != nil {
		return nil, multierr.Combine(err, conn.Close())
	}
	logger.Infow("connected to robot", "address", address)
	return c, nil
}

// NewClientFromConn wraps an established connection without a handshake.
func NewClientFromConn(conn net.Conn, logger logging.Logger) *Client {
	return &Client{conn: conn, logger: logger}
}

func (c *Client) handshake(ctx context.Context) error {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, ProtocolVersion)
	data, err := c.send(ctx, cmdConnect, payload)
	if err != nil {
		return err
	}
	if len(data) != 2 {
		return errors.Errorf("invalid connect response size: %d", len(data))
	}
	if v := binary.LittleEndian.Uint16(data); v != ProtocolVersion {
		return errors.Errorf("robot speaks protocol version %d, want %d", v, ProtocolVersion)
	}
	return nil
}

// send writes one request and reads its response. The returned slice is the response payload
// without the status byte.
func (c *Client) send(ctx context.Context, cmd command, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.Errorf("%s: connection closed", cmd)
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	c.requestID++
	req := header{cmd: cmd, requestID: c.requestID, payloadSize: uint32(len(payload))}
	if _, err := c.conn.Write(append(req.bytes(), payload...)); err != nil {
		return nil, errors.Wrapf(err, "%s: write failed", cmd)
	}

	buf, err := goutils.ReadBytes(ctx, c.conn, headerSize)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read failed", cmd)
	}
	resp, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if resp.cmd != cmd || resp.requestID != req.requestID {
		return nil, errors.Errorf("%s: unexpected response %s with id %d (want %d)", cmd, resp.cmd, resp.requestID, req.requestID)
	}
	if resp.payloadSize == 0 {
		return nil, errors.Errorf("%s: empty response", cmd)
	}
	body, err := goutils.ReadBytes(ctx, c.conn, int(resp.payloadSize))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read failed", cmd)
	}
	if err := status(body[0]).err(cmd); err != nil {
		return nil, err
	}
	return body[1:], nil
}

// ReadOnce fetches the latest robot state.
func (c *Client) ReadOnce(ctx context.Context) (State, error) {
	data, err := c.send(ctx, cmdReadState, nil)
	if err != nil {
		return State{}, err
	}
	return decodeState(data)
}

// WriteOnce sends one cycle of torques or velocities, depending on the active interface.
func (c *Client) WriteOnce(ctx context.Context, commands JointVector) error {
	payload := make([]byte, NumJoints*8)
	putJointVector(payload, commands)
	_, err := c.send(ctx, cmdWriteCommand, payload)
	return err
}

// StopRobot ends the active streaming interface.
func (c *Client) StopRobot(ctx context.Context) error {
	if _, err := c.send(ctx, cmdStopMove, nil); err != nil {
		return err
	}
	c.setMode(ModeIdle)
	return nil
}

// InitializeTorqueInterface starts torque streaming.
func (c *Client) InitializeTorqueInterface(ctx context.Context) error {
	return c.move(ctx, ModeTorque)
}

// InitializeJointVelocityInterface starts joint velocity streaming.
func (c *Client) InitializeJointVelocityInterface(ctx context.Context) error {
	return c.move(ctx, ModeJointVelocity)
}

func (c *Client) move(ctx context.Context, mode ControllerMode) error {
	if _, err := c.send(ctx, cmdMove, []byte{byte(mode)}); err != nil {
		return err
	}
	c.setMode(mode)
	c.logger.Debugw("streaming interface started", "mode", mode.String())
	return nil
}

// Mode returns the streaming interface last acknowledged by the controller.
func (c *Client) Mode() ControllerMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Client) setMode(mode ControllerMode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
}

// Model downloads the dynamics model.
func (c *Client) Model(ctx context.Context) (Model, error) {
	data, err := c.send(ctx, cmdLoadModel, nil)
	if err != nil {
		return Model{}, err
	}
	if len(data) < 2 {
		return Model{}, errors.Errorf("invalid model size: %d", len(data))
	}
	return Model{
		Version: binary.LittleEndian.Uint16(data[0:2]),
		Library: data[2:],
	}, nil
}

// Close closes the connection. Further requests fail.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// defaultConnectTimeout bounds Connect when the caller's context has no deadline.
const defaultConnectTimeout = 5 * time.Second

// ConnectWithTimeout is Connect bounded by timeout, or by a default when timeout is zero.
func ConnectWithTimeout(ctx context.Context, address string, timeout time.Duration, logger logging.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Connect(ctx, address, logger)
}
