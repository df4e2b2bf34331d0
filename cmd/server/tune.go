package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/resonance/pkg/resonance"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
)

const (
	// tuneReadLimit bounds a single binary message, about 5 s of audio at 48 kHz.
	tuneReadLimit = 1 << 20
	// tuneBuffer is the number of complete frames queued for the session.
	tuneBuffer = 4
)

// handleTune handles GET /ws/tune. The client sends one TuneHello text
// message followed by binary little-endian float32 samples, and receives
// one ReadingDTO per detected pitch.
func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.AllowedOrigins,
	})
	if err != nil {
		s.log.Warnf("WebSocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(tuneReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	hello, err := readHello(ctx, conn)
	if err != nil {
		s.log.Warnf("Rejected tuning stream: %v", err)
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	if hello.ProfileID != "" {
		if _, err := s.service.FindProfile(ctx, hello.ProfileID); err != nil {
			conn.Close(websocket.StatusPolicyViolation, truncateReason(err.Error()))
			return
		}
	}
	s.log.Infof("Tuning stream opened at %d Hz (profile %q)", hello.SampleRate, hello.ProfileID)

	src := audio.NewChanSource(hello.SampleRate, tuneBuffer)
	framer := audio.NewFramer(audio.DefaultFrameSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer src.Close()
		for {
			typ, data, err := conn.Read(gctx)
			if err != nil {
				if isNormalClose(err) || gctx.Err() != nil {
					return nil
				}
				return err
			}
			if typ != websocket.MessageBinary {
				continue
			}
			frames, err := framer.WriteFloat32LE(data)
			if err != nil {
				return err
			}
			for _, f := range frames {
				if err := src.Push(gctx, f); err != nil {
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		opts := resonance.ListenOptions{
			ProfileID:        hello.ProfileID,
			SpeakingLengthMm: hello.SpeakingLengthMm,
		}
		_, err := s.service.Listen(gctx, src, opts, func(rd session.Reading) {
			if err := wsjson.Write(gctx, conn, newReadingDTO(rd)); err != nil {
				s.log.Debugf("Dropping reading %d: %v", rd.FrameSeq, err)
			}
		})
		if err != nil {
			return err
		}
		// the source ended because the client went away
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.Warnf("Tuning stream ended: %v", err)
		conn.Close(websocket.StatusInternalError, truncateReason(err.Error()))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
	s.log.Infof("Tuning stream closed")
}

func readHello(ctx context.Context, conn *websocket.Conn) (TuneHello, error) {
	var hello TuneHello
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return hello, err
	}
	if typ != websocket.MessageText {
		return hello, errors.New("first message must be a JSON hello")
	}
	if err := json.Unmarshal(data, &hello); err != nil {
		return hello, errors.New("invalid hello: " + err.Error())
	}
	return hello, hello.Validate()
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

// truncateReason keeps a close reason within the 123 bytes a close frame allows.
func truncateReason(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
