package archive

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
)

// Exporter ships a snapshot to secondary storage.
type Exporter interface {
	Export(ctx context.Context, snapshot *models.UsageSnapshot) error
}

// Archiver stores usage snapshots before counters are reset. The database
// copy is authoritative; exporter failures are logged and do not fail the call.
type Archiver struct {
	snapshots repository.UsageSnapshotRepository
	exporter  Exporter
}

// NewArchiver creates an archiver. exporter may be nil.
func NewArchiver(snapshots repository.UsageSnapshotRepository, exporter Exporter) *Archiver {
	return &Archiver{snapshots: snapshots, exporter: exporter}
}

// Archive persists snapshot and exports it when an exporter is configured.
func (a *Archiver) Archive(ctx context.Context, snapshot *models.UsageSnapshot) error {
	if err := a.snapshots.Save(snapshot); err != nil {
		return err
	}
	if a.exporter == nil {
		return nil
	}
	if err := a.exporter.Export(ctx, snapshot); err != nil {
		log.Warnf("[Archive] Export of client %d month %s failed: %v", snapshot.ClientID, snapshot.BillingMonth, err)
	}
	return nil
}
