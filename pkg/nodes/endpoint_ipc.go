package nodes

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
	"unicode/utf8"

	"github.com/budecosystem/waav-gateway/pkg/dag"
	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

const (
	ipcMaxSocketNameLen = 97
	ipcMaxResponseBytes = 100 << 20 // 100 MiB
	ipcSocketPathPrefix = "/tmp/"
	ipcSocketPathSuffix = ".sock"
)

// ipcEndpointNode talks to a local inference sidecar over a Unix-domain
// socket using a 4-byte big-endian length-prefixed protocol, per spec.md
// §4.4's IPC endpoint node (Unix only).
type ipcEndpointNode struct {
	id           string
	socketPath   string
	inputFormat  string
	outputFormat string
	timeout      time.Duration
}

func (n ipcEndpointNode) ID() string   { return n.id }
func (n ipcEndpointNode) Type() string { return "ipc_endpoint" }
func (n ipcEndpointNode) Capabilities() dag.CapabilitySet {
	return dag.NewCapabilitySet(dag.CapAudioIn, dag.CapJSONIn, dag.CapAudioOut, dag.CapTextOut, dag.CapJSONOut)
}

func (n ipcEndpointNode) Execute(ctx *execctx.Context, p payload.Payload) (payload.Payload, error) {
	timeout := minDuration(n.timeout, ctx.Remaining())
	dialer := net.Dialer{}
	dialCtx, cancel := context.WithTimeout(ctx.Ctx(), timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "unix", n.socketPath)
	if err != nil {
		return nil, &EndpointError{Kind: "ipc", Target: n.socketPath, Err: err}
	}
	defer conn.Close()

	deadline, ok := dialCtx.Deadline()
	if ok {
		_ = conn.SetDeadline(deadline)
	}

	req, err := n.encodeRequest(p)
	if err != nil {
		return nil, &EndpointError{Kind: "ipc", Target: n.socketPath, Err: err}
	}
	if err := writeFrame(conn, req); err != nil {
		return nil, &EndpointError{Kind: "ipc", Target: n.socketPath, Err: err}
	}

	resp, err := readFrame(conn, ipcMaxResponseBytes)
	if err != nil {
		return nil, &EndpointError{Kind: "ipc", Target: n.socketPath, Err: err}
	}

	return n.decodeResponse(resp)
}

func (n ipcEndpointNode) encodeRequest(p payload.Payload) ([]byte, error) {
	if n.inputFormat == "json" {
		envelope := map[string]any{}
		if audio, ok := p.(payload.Audio); ok {
			envelope["audio_base64"] = base64.StdEncoding.EncodeToString(audio.Data)
			envelope["sample_rate"] = audio.SampleRate
			envelope["channels"] = audio.Channels
		} else {
			v, err := payload.ToJSON(p)
			if err != nil {
				return nil, err
			}
			envelope["data"] = v
		}
		return json.Marshal(envelope)
	}

	switch v := p.(type) {
	case payload.Audio:
		return v.Data, nil
	case payload.Binary:
		return v.Data, nil
	default:
		return payload.MarshalJSON(p)
	}
}

func (n ipcEndpointNode) decodeResponse(data []byte) (payload.Payload, error) {
	switch n.outputFormat {
	case "pcm16", "audio":
		return payload.Audio{Data: data}, nil
	case "text":
		if !utf8.Valid(data) {
			return nil, &EndpointError{Kind: "ipc", Target: n.socketPath, Err: fmt.Errorf("response declared output_format=text but is not valid UTF-8")}
		}
		return payload.Text{Value: string(data)}, nil
	default:
		var decoded any
		if json.Unmarshal(data, &decoded) == nil {
			return payload.JSON{Value: decoded}, nil
		}
		return payload.Binary{Data: data}, nil
	}
}

func writeFrame(conn net.Conn, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func readFrame(conn net.Conn, maxBytes int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if int(n) > maxBytes {
		return nil, fmt.Errorf("ipc response length %d exceeds the %d byte cap", n, maxBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// sanitizeSocketName validates and sanitizes an IPC socket name per
// spec.md §4.4: only [A-Za-z0-9_-], no path separators, no "..", length
// <= 97 chars.
func sanitizeSocketName(name string) error {
	if name == "" {
		return fmt.Errorf("socket name must not be empty")
	}
	if len(name) > ipcMaxSocketNameLen {
		return fmt.Errorf("socket name exceeds %d characters", ipcMaxSocketNameLen)
	}
	for _, r := range name {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '_' && r != '-' {
			return fmt.Errorf("socket name contains an invalid character %q", r)
		}
	}
	return nil
}

// NewIPCEndpoint builds the ipc_endpoint node factory output. Config
// fields: "socket_name" (required, validated/sanitized), "input_format"
// ("json" or raw, default raw), "output_format" ("pcm16"|"audio"|"text"|
// "json", default "json").
func NewIPCEndpoint(def dag.NodeDef) (dag.Node, error) {
	name, _ := def.Config["socket_name"].(string)
	if err := sanitizeSocketName(name); err != nil {
		return nil, &ConfigurationError{NodeID: def.ID, Message: "ipc_endpoint \"socket_name\": " + err.Error()}
	}

	inputFormat, _ := def.Config["input_format"].(string)
	outputFormat, _ := def.Config["output_format"].(string)

	timeoutMs := def.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = int(defaultProviderTimeout / time.Millisecond)
	}

	return ipcEndpointNode{
		id:           def.ID,
		socketPath:   ipcSocketPathPrefix + name + ipcSocketPathSuffix,
		inputFormat:  inputFormat,
		outputFormat: outputFormat,
		timeout:      time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}
