package worker

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aomanu/cidrd/pkg/cidrset"
	"github.com/aomanu/cidrd/pkg/iprange"
	"github.com/aomanu/cidrd/pkg/models"
)

func (w *Worker) processJob(ctx context.Context, tx pgx.Tx, job *models.CidrJob) error {
	switch job.Action {
	case models.ActionAdd:
		return w.processAdd(ctx, tx, job)
	case models.ActionDelete:
		return w.processDelete(ctx, tx, job)
	case models.ActionUpdate:
		return w.processUpdate(ctx, tx, job)
	default:
		return fmt.Errorf("unknown job action %q", job.Action)
	}
}

// processAdd inserts new prefixes into a list. DENY additions are trimmed
// by the user's enabled SAFE coverage first; an enabled SAFE addition
// instead carves itself out of the user's DENY rows before landing.
func (w *Worker) processAdd(ctx context.Context, tx pgx.Tx, job *models.CidrJob) error {
	stats, v4, v6 := cidrset.ParseRaw(job.Cidrs, w.onlyGlobal)
	w.recordSkips(stats)
	inputs := append(v4, v6...)
	if len(inputs) == 0 {
		return nil
	}

	expiresAt := w.expiry(job.TTL)

	switch {
	case job.ListType == models.ListTypeDeny:
		safeRows, err := w.store.SelectEnabledCidrsByListTypeTx(ctx, tx, job.UserID, models.ListTypeSafe)
		if err != nil {
			return err
		}
		inputs = excludeAll(inputs, parseStored(safeRows))
		if len(inputs) == 0 {
			return nil
		}

	case job.ListEnabled:
		// New SAFE coverage splits any overlapping DENY rows.
		denyRows, err := w.store.SelectEnabledCidrsByListTypeTx(ctx, tx, job.UserID, models.ListTypeDeny)
		if err != nil {
			return err
		}
		if err := w.applyPlan(ctx, tx, planCleanup(denyRows, inputs)); err != nil {
			return err
		}

	default:
		// Disabled SAFE list: store the rows, defer the DENY cleanup to
		// the update job fired when the list is enabled.
	}

	return w.upsert(ctx, tx, job.ListID, cidrset.Strings(inputs), expiresAt)
}

// processDelete removes the intersection of the input with the list's rows
// and writes back the summarised remainder.
func (w *Worker) processDelete(ctx context.Context, tx pgx.Tx, job *models.CidrJob) error {
	stats, v4, v6 := cidrset.ParseRaw(job.Cidrs, false)
	w.recordSkips(stats)
	exclusions := append(v4, v6...)
	if len(exclusions) == 0 {
		return nil
	}

	rows, err := w.store.SelectCidrsByListIDTx(ctx, tx, job.ListID)
	if err != nil {
		return err
	}
	return w.applyPlan(ctx, tx, planCleanup(rows, exclusions))
}

// processUpdate re-applies a SAFE list against the user's DENY rows. Fired
// when a SAFE list flips from disabled to enabled; a list disabled again
// before the job drains contributes no rows, so the job is a no-op.
func (w *Worker) processUpdate(ctx context.Context, tx pgx.Tx, job *models.CidrJob) error {
	if job.ListType != models.ListTypeSafe {
		return fmt.Errorf("update job for %s list %q, only SAFE lists can be re-applied", job.ListType, job.ListID)
	}

	safeRows, err := w.store.SelectEnabledCidrsByListIDTx(ctx, tx, job.ListID)
	if err != nil {
		return err
	}
	exclusions := parseStored(safeRows)
	if len(exclusions) == 0 {
		return nil
	}

	denyRows, err := w.store.SelectEnabledCidrsByListTypeTx(ctx, tx, job.UserID, models.ListTypeDeny)
	if err != nil {
		return err
	}
	return w.applyPlan(ctx, tx, planCleanup(denyRows, exclusions))
}

// applyPlan runs all deletes, then all upserts.
func (w *Worker) applyPlan(ctx context.Context, tx pgx.Tx, plan cleanupPlan) error {
	if plan.empty() {
		return nil
	}
	for listID, addrs := range plan.deletes {
		if err := w.delete(ctx, tx, listID, addrs); err != nil {
			return err
		}
	}
	for _, g := range plan.upserts {
		if err := w.upsert(ctx, tx, g.listID, g.addrs, g.expiresAt); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) upsert(ctx context.Context, tx pgx.Tx, listID string, addrs []string, expiresAt *time.Time) error {
	if len(addrs) == 0 {
		return nil
	}
	if err := w.store.UpsertCidrsTx(ctx, tx, listID, addrs, expiresAt); err != nil {
		return err
	}
	w.metrics.CidrsUpserted.Add(float64(len(addrs)))
	return nil
}

func (w *Worker) delete(ctx context.Context, tx pgx.Tx, listID string, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	if err := w.store.DeleteCidrsTx(ctx, tx, listID, addrs); err != nil {
		return err
	}
	w.metrics.CidrsDeleted.Add(float64(len(addrs)))
	return nil
}

func (w *Worker) expiry(ttl *int64) *time.Time {
	if ttl == nil {
		return nil
	}
	t := w.now().Add(time.Duration(*ttl) * time.Second)
	return &t
}

func (w *Worker) recordSkips(stats cidrset.ParseStats) {
	if stats.Malformed > 0 {
		w.metrics.CidrsSkipped.WithLabelValues("malformed").Add(float64(stats.Malformed))
	}
	if stats.NonGlobal > 0 {
		w.metrics.CidrsSkipped.WithLabelValues("non_global").Add(float64(stats.NonGlobal))
	}
}

// excludeAll strips the exclusion coverage from every input prefix and
// collapses the survivors.
func excludeAll(inputs, exclusions []netip.Prefix) []netip.Prefix {
	if len(exclusions) == 0 {
		return inputs
	}
	var out []netip.Prefix
	for _, in := range inputs {
		out = append(out, iprange.ExcludeMany(in, exclusions)...)
	}
	return iprange.Collapse(out)
}
