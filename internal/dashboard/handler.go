// Package dashboard provides event handling and message formatting for the dashboard.
package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/tessadoran/stride/internal/ledger"
	"github.com/tessadoran/stride/internal/record"
	syncer "github.com/tessadoran/stride/internal/sync"
)

// Handler subscribes to sync engine events and formats them as dashboard
// messages. It bridges between the sync listener callbacks and the
// WebSocket server, and satisfies the sync Listener interface.
type Handler struct {
	server *Server
	logger *log.Logger

	// Statistics tracking
	stats StatsData
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// OnSyncStarted handles the beginning of a sync cycle
func (h *Handler) OnSyncStarted() {
	h.logger.Println("Sync started")

	msg := Message{
		Type:      MessageTypeSyncStarted,
		Timestamp: time.Now(),
	}
	h.server.Broadcast(msg)
}

// OnSyncCompleted handles sync cycle completion events
func (h *Handler) OnSyncCompleted(report *syncer.Report) {
	h.logger.Printf("Sync completed: pushed=%d pulled=%d conflicts=%d failures=%d",
		report.Pushed, report.Pulled, report.Conflicts, len(report.Failures))

	h.stats.SyncsRun++

	data := SyncCompleteData{
		Pushed:    report.Pushed,
		Pulled:    report.Pulled,
		Conflicts: report.Conflicts,
		Failures:  len(report.Failures),
		Duration:  report.Duration(),
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal sync data: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeSyncComplete,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)

	h.broadcastStats()
}

// OnConflictDetected handles conflict detection events
func (h *Handler) OnConflictDetected(c ledger.Conflict) {
	h.logger.Printf("Conflict detected: %s (%s)", c.RecordID, c.Table)

	h.stats.OpenConflicts++

	data := ConflictData{
		ConflictID: c.ID,
		Table:      string(c.Table),
		RecordID:   c.RecordID,
		Type:       string(c.Type),
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal conflict data: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeConflict,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)
}

// OnRecordPulled handles records applied during the pull phase
func (h *Handler) OnRecordPulled(rec record.Record) {
	meta := rec.Meta()

	data := RecordUpdateData{
		Table:    string(rec.Table()),
		RecordID: meta.ID,
		Action:   "pulled",
		Status:   string(meta.SyncStatus),
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal record data: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeRecordUpdate,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)
}

// SetQueueDepth updates the queue depth statistic and rebroadcasts stats.
func (h *Handler) SetQueueDepth(depth int) {
	h.stats.QueueDepth = depth
	h.broadcastStats()
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	dataJSON, err := json.Marshal(h.stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)
}
