package billing

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/app/models"
)

// StatusForPackage returns the denormalized client status for pkg.
func StatusForPackage(pkg *models.Package) string {
	if pkg == nil || pkg.Slug == "" {
		return models.StatusNoPackage
	}
	return pkg.Slug
}

// SyncClientStatuses rewrites every client status that drifted from its
// package slug and returns how many rows changed.
func (s *Service) SyncClientStatuses(ctx context.Context) (int, error) {
	_ = ctx
	clients, err := s.repo.ListClients()
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range clients {
		c := &clients[i]
		want := StatusForPackage(c.Package)
		if c.Status == want {
			continue
		}
		if err := s.repo.UpdateClientStatus(c.ID, want); err != nil {
			log.Warnf("[StatusSync] Failed to update client %d: %v", c.ID, err)
			continue
		}
		updated++
	}
	if updated > 0 {
		log.Infof("[StatusSync] Updated %d client statuses", updated)
	}
	return updated, nil
}
