// Package session implements atlasd's Session Ingestor (spec.md §4.8):
// triggered by atlas.session_event, it parses a Claude-Code JSONL
// transcript, retains user/assistant text, and queues the joined
// content as an ingest via the ingest collaborator.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
)

// minRetainedChars is spec.md §4.8 step 5's floor: fewer retained
// characters than this and the transcript is discarded without ingest.
const minRetainedChars = 100

const blockSeparator = "\n\n---\n\n"

// Ingester is the ingest collaborator's contract with the Session
// Ingestor: IngestText writes content to a temp file internally (or
// accepts it directly) and reports chunks stored. Declared locally so
// session never imports daemon.
type Ingester interface {
	IngestText(ctx context.Context, sessionID, header, content string) (chunksStored int, err error)
}

// Ingestor implements router.SessionIngestor.
type Ingestor struct {
	bus      *eventbus.Bus
	ingester Ingester
}

// New constructs a Session Ingestor.
func New(bus *eventbus.Bus, ingester Ingester) *Ingestor {
	return &Ingestor{bus: bus, ingester: ingester}
}

// Ingest runs the full spec.md §4.8 pipeline. It is fire-and-forget:
// all errors are swallowed after the session.error event is emitted
// (spec.md §4.8 step 7, "Errors are swallowed (fire-and-forget) after
// the event is emitted").
func (s *Ingestor) Ingest(ctx context.Context, sessionID, transcriptPath string) {
	start := time.Now()

	content, err := s.extractContent(transcriptPath)
	if err != nil {
		s.emitError(sessionID, err)
		return
	}
	if len(content) < minRetainedChars {
		logger.Debugw("session transcript below retention floor, discarding", "session_id", sessionID, "chars", len(content))
		return
	}

	header := sessionHeader(sessionID)
	chunks, err := s.ingester.IngestText(ctx, sessionID, header, content)
	if err != nil {
		s.emitError(sessionID, err)
		return
	}

	s.bus.Emit(eventbus.Event{Type: "session.ingested", Data: map[string]interface{}{
		"sessionId": sessionID, "chunksCreated": chunks, "took": time.Since(start).Milliseconds(),
	}})
}

func (s *Ingestor) emitError(sessionID string, err error) {
	logger.Warnw("session ingest failed", "session_id", sessionID, "error", err.Error())
	s.bus.Emit(eventbus.Event{Type: "session.error", Data: map[string]interface{}{
		"sessionId": sessionID, "error": err.Error(), "phase": "ingest",
	}})
}

func sessionHeader(sessionID string) string {
	return "# Session " + sessionID + "\n\n"
}

// extractContent reads transcriptPath line by line, parses each line as
// a transcriptMessage, discards malformed lines and any message whose
// role is neither user nor assistant, and joins the retained text
// blocks with blockSeparator (spec.md §4.8 steps 1-4).
func (s *Ingestor) extractContent(transcriptPath string) (string, error) {
	f, err := os.Open(transcriptPath)
	if err != nil {
		return "", errors.Wrap(err, "open session transcript")
	}
	defer f.Close()

	var blocks []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg transcriptMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		text := msg.text()
		if text == "" {
			continue
		}
		blocks = append(blocks, text)
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "scan session transcript")
	}

	return strings.Join(blocks, blockSeparator), nil
}
