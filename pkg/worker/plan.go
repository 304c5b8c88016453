package worker

import (
	"net/netip"
	"time"

	"github.com/aomanu/cidrd/pkg/cidrset"
	"github.com/aomanu/cidrd/pkg/iprange"
	"github.com/aomanu/cidrd/pkg/models"
)

// upsertGroup batches upserts that share a list and an expiry.
type upsertGroup struct {
	listID    string
	expiresAt *time.Time
	addrs     []string
}

// cleanupPlan is the outcome of running an exclusion set over stored rows:
// which rows to delete and which replacement fragments to write back.
// Deletes are applied before upserts.
type cleanupPlan struct {
	deletes map[string][]string
	upserts []upsertGroup
}

func (p *cleanupPlan) addDelete(listID, addr string) {
	if p.deletes == nil {
		p.deletes = map[string][]string{}
	}
	p.deletes[listID] = append(p.deletes[listID], addr)
}

func (p *cleanupPlan) addUpsert(listID string, expiresAt *time.Time, addrs ...string) {
	if len(addrs) == 0 {
		return
	}
	for i := range p.upserts {
		g := &p.upserts[i]
		if g.listID == listID && sameExpiry(g.expiresAt, expiresAt) {
			g.addrs = append(g.addrs, addrs...)
			return
		}
	}
	p.upserts = append(p.upserts, upsertGroup{listID: listID, expiresAt: expiresAt, addrs: addrs})
}

func (p *cleanupPlan) empty() bool {
	return len(p.deletes) == 0 && len(p.upserts) == 0
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// planCleanup subtracts the exclusion set from every stored row. A row
// fully covered by the exclusions is deleted; a partially covered row is
// replaced by the summarised remainder, each fragment inheriting the row's
// expiry. Untouched rows get a refreshing upsert so their expiry survives
// the pass. Rows whose stored address no longer parses are skipped.
func planCleanup(rows []models.Cidr, exclusions []netip.Prefix) cleanupPlan {
	var plan cleanupPlan
	for _, row := range rows {
		addr, err := cidrset.ParseLoose(row.Address)
		if err != nil {
			continue
		}
		remaining := iprange.ExcludeMany(addr, exclusions)
		switch {
		case len(remaining) == 1 && remaining[0] == addr:
			plan.addUpsert(row.ListID, row.ExpiresAt, addr.String())
		case len(remaining) == 0:
			plan.addDelete(row.ListID, row.Address)
		default:
			plan.addDelete(row.ListID, row.Address)
			plan.addUpsert(row.ListID, row.ExpiresAt, cidrset.Strings(remaining)...)
		}
	}
	return plan
}

// parseStored parses stored rows back into prefixes, collapsed per call.
func parseStored(rows []models.Cidr) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, row := range rows {
		if p, err := cidrset.ParseLoose(row.Address); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return iprange.Collapse(prefixes)
}
