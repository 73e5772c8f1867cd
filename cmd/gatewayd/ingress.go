// ingress.go implements the gateway's own inbound connection handling: the
// WebSocket surface a caller dials into to drive one pipeline. Nothing in
// pkg/nodes serves this role — its "endpoint" nodes are outbound clients a
// compiled graph calls out to, and its audio/text input and output nodes
// are pure pass-throughs by design, leaving delivery to "whatever component
// owns the session's client connection" (see pkg/nodes/io.go). This file is
// that component.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/budecosystem/waav-gateway/pkg/execctx"
	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// defaultStreamDeadline bounds a single execution's wall-clock budget when
// the caller supplies no deadline of its own.
const defaultStreamDeadline = 60 * time.Second

// ingress serves one WebSocket endpoint per configured pipeline.
type ingress struct {
	pipelines *pipelineSet
}

func newIngress(pipelines *pipelineSet) *ingress {
	return &ingress{pipelines: pipelines}
}

// register mounts GET /ws/{pipeline} for every configured pipeline name.
func (in *ingress) register(r *mux.Router) {
	r.HandleFunc("/ws/{pipeline}", in.handleConnect).Methods(http.MethodGet)
}

func (in *ingress) handleConnect(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["pipeline"]
	p, ok := in.pipelines.get(name)
	if !ok {
		http.Error(w, "unknown pipeline: "+name, http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("ingress: websocket accept failed", "pipeline", name, "err", err)
		return
	}
	defer conn.CloseNow()

	streamID := uuid.NewString()
	apiKeyID := r.Header.Get("X-Api-Key-Id")
	authToken := r.Header.Get("Authorization")

	slog.Info("ingress: stream connected", "pipeline", name, "stream_id", streamID)
	in.serve(r.Context(), conn, p, streamID, apiKeyID, authToken)
	slog.Info("ingress: stream closed", "pipeline", name, "stream_id", streamID)
}

// serve reads frames off conn until the connection closes or ctx is
// cancelled, running each one through the pipeline's executor and writing
// the result back over the same socket.
func (in *ingress) serve(ctx context.Context, conn *websocket.Conn, p *pipeline, streamID, apiKeyID, authToken string) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("ingress: read ended", "stream_id", streamID, "err", err)
			return
		}

		var in payload.Payload
		switch msgType {
		case websocket.MessageText:
			var decoded any
			if json.Unmarshal(data, &decoded) == nil {
				in = payload.JSON{Value: decoded}
			} else {
				in = payload.Text{Value: string(data)}
			}
		default:
			in = payload.Audio{Data: data, SampleRate: 16000, Channels: 1}
		}

		execCtx := execctx.New(ctx, streamID, time.Now().Add(defaultStreamDeadline))
		execCtx.AuthToken = authToken
		execCtx.AuthTokenID = apiKeyID

		out, err := p.exec.Execute(execCtx, apiKeyID, in)
		if err != nil {
			slog.Warn("ingress: execution failed", "pipeline", p.name, "stream_id", streamID, "err", err)
			writeErrorFrame(ctx, conn, err)
			continue
		}
		writeResultFrame(ctx, conn, out)
	}
}

// writeResultFrame serializes a pipeline's output payload onto the socket:
// audio/binary variants as a binary frame, Text as a raw text frame, and
// everything else as a JSON text frame (via payload.MarshalJSON).
func writeResultFrame(ctx context.Context, conn *websocket.Conn, p payload.Payload) {
	switch v := p.(type) {
	case payload.Audio:
		_ = conn.Write(ctx, websocket.MessageBinary, v.Data)
	case payload.TTSAudio:
		_ = conn.Write(ctx, websocket.MessageBinary, v.Data)
	case payload.Binary:
		_ = conn.Write(ctx, websocket.MessageBinary, v.Data)
	case payload.Text:
		_ = conn.Write(ctx, websocket.MessageText, []byte(v.Value))
	default:
		body, err := payload.MarshalJSON(p)
		if err != nil {
			slog.Warn("ingress: marshal result", "err", err)
			return
		}
		_ = conn.Write(ctx, websocket.MessageText, body)
	}
}

// writeErrorFrame reports an execution failure to the caller as a small
// JSON envelope rather than closing the socket — the caller's stream stays
// open for its next frame.
func writeErrorFrame(ctx context.Context, conn *websocket.Conn, execErr error) {
	body, err := json.Marshal(map[string]string{"error": execErr.Error()})
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, body)
}
