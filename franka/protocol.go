package franka

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// ProtocolVersion is the command protocol version this client speaks.
const ProtocolVersion uint16 = 5

// DefaultCommandPort is the controller's TCP command port.
const DefaultCommandPort = "1337"

const (
	headerSize = 12
	stateSize  = 8 + 3*NumJoints*8
	// maxPayloadSize bounds responses; the model library is the largest payload.
	maxPayloadSize = 16 << 20
)

type command uint32

const (
	cmdConnect command = iota
	cmdMove
	cmdStopMove
	cmdLoadModel
	cmdReadState
	cmdWriteCommand
)

func (c command) String() string {
	switch c {
	case cmdConnect:
		return "connect"
	case cmdMove:
		return "move"
	case cmdStopMove:
		return "stop_move"
	case cmdLoadModel:
		return "load_model"
	case cmdReadState:
		return "read_state"
	case cmdWriteCommand:
		return "write_command"
	}
	return fmt.Sprintf("command(%d)", uint32(c))
}

// ControllerMode selects what the controller expects from WriteOnce.
type ControllerMode uint8

const (
	// ModeIdle means no streaming interface is active.
	ModeIdle ControllerMode = iota
	// ModeTorque streams joint torques.
	ModeTorque
	// ModeJointVelocity streams joint velocities.
	ModeJointVelocity
)

func (m ControllerMode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeTorque:
		return "torque"
	case ModeJointVelocity:
		return "joint_velocity"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

type status uint8

const (
	statusSuccess status = iota
	statusRejected
	statusAborted
	statusIncompatibleVersion
	statusNotStreaming
)

var statusMessages = map[status]string{
	statusRejected:            "command rejected by controller",
	statusAborted:             "motion aborted by controller",
	statusIncompatibleVersion: "incompatible protocol version",
	statusNotStreaming:        "no streaming interface active",
}

func (s status) err(cmd command) error {
	if s == statusSuccess {
		return nil
	}
	msg, ok := statusMessages[s]
	if !ok {
		msg = fmt.Sprintf("unknown status %d", uint8(s))
	}
	return errors.Errorf("%s: %s", cmd, msg)
}

// header frames every request and response. Responses echo the request's command and id.
type header struct {
	cmd         command
	requestID   uint32
	payloadSize uint32
}

func (h header) bytes() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.cmd))
	binary.LittleEndian.PutUint32(buf[4:8], h.requestID)
	binary.LittleEndian.PutUint32(buf[8:12], h.payloadSize)
	return buf
}

func parseHeader(buf []byte) (header, error) {
	if len(buf) != headerSize {
		return header{}, errors.Errorf("invalid header size: %d", len(buf))
	}
	h := header{
		cmd:         command(binary.LittleEndian.Uint32(buf[0:4])),
		requestID:   binary.LittleEndian.Uint32(buf[4:8]),
		payloadSize: binary.LittleEndian.Uint32(buf[8:12]),
	}
	if h.payloadSize > maxPayloadSize {
		return header{}, errors.Errorf("invalid payload size: %d", h.payloadSize)
	}
	return h, nil
}

func putJointVector(buf []byte, v JointVector) {
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
}

func jointVectorFromBytes(buf []byte) JointVector {
	var v JointVector
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}

func encodeState(s State) []byte {
	buf := make([]byte, stateSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(s.Time/time.Millisecond))
	putJointVector(buf[8:], s.Q)
	putJointVector(buf[8+NumJoints*8:], s.DQ)
	putJointVector(buf[8+2*NumJoints*8:], s.TauJ)
	return buf
}

func decodeState(buf []byte) (State, error) {
	if len(buf) != stateSize {
		return State{}, errors.Errorf("invalid state size: %d", len(buf))
	}
	return State{
		Time: time.Duration(binary.LittleEndian.Uint64(buf[0:8])) * time.Millisecond,
		Q:    jointVectorFromBytes(buf[8:]),
		DQ:   jointVectorFromBytes(buf[8+NumJoints*8:]),
		TauJ: jointVectorFromBytes(buf[8+2*NumJoints*8:]),
	}, nil
}
