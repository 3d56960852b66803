package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

// ProposalFetcher implements preparation.DataFetcher by reading every
// collection a proposal snapshot needs inside one REPEATABLE READ
// transaction (§4.2), so a concurrent writer can never be observed
// mid-update across tables.
type ProposalFetcher struct {
	pool *pgxpool.Pool
}

func NewProposalFetcher(pool *pgxpool.Pool) *ProposalFetcher {
	return &ProposalFetcher{pool: pool}
}

func (f *ProposalFetcher) Fetch(ctx context.Context, proposalID, tenant string) (preparation.Snapshot, error) {
	tx, err := f.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return preparation.Snapshot{}, fmt.Errorf("postgres: beginning snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	snap := preparation.Snapshot{ProposalID: proposalID, Tenant: tenant}

	if snap.LineItems, err = fetchLineItems(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}
	if snap.Modifiers, err = fetchModifiers(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}
	if snap.Dependencies, err = fetchDependencies(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}
	if snap.Rules, err = fetchRules(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}
	if snap.Config, err = fetchTaxConfig(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}
	if snap.ProposalMeta, snap.CustomerMeta, snap.ProjectMeta, err = fetchMetadata(ctx, tx, proposalID); err != nil {
		return preparation.Snapshot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return preparation.Snapshot{}, fmt.Errorf("postgres: committing snapshot tx: %w", err)
	}
	return snap, nil
}

func fetchLineItems(ctx context.Context, tx pgx.Tx, proposalID string) ([]preparation.RawLineItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, unit_price, quantity, cost, tax_setting, use_tax_eligible, vendor_tax_collected
		FROM line_items WHERE proposal_id = $1 ORDER BY id`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying line_items: %w", err)
	}
	defer rows.Close()

	var out []preparation.RawLineItem
	for rows.Next() {
		var li preparation.RawLineItem
		if err := rows.Scan(&li.ID, &li.UnitPrice, &li.Quantity, &li.Cost, &li.TaxSetting, &li.UseTaxEligible, &li.VendorTaxCollected); err != nil {
			return nil, fmt.Errorf("postgres: scanning line_items row: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func fetchModifiers(ctx context.Context, tx pgx.Tx, proposalID string) ([]preparation.RawModifier, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, kind, value, tax_setting, category, affects_quantity, cost_percentage,
		       display_mode, application_type, product_id, chain_priority, line_item_id,
		       created_at, missing_cost_strategy
		FROM modifiers WHERE proposal_id = $1 ORDER BY chain_priority, id`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying modifiers: %w", err)
	}
	defer rows.Close()

	var out []preparation.RawModifier
	for rows.Next() {
		var m preparation.RawModifier
		if err := rows.Scan(&m.ID, &m.Kind, &m.Value, &m.TaxSetting, &m.Category, &m.AffectsQuantity,
			&m.CostPercentage, &m.DisplayMode, &m.ApplicationType, &m.ProductID, &m.ChainPriority,
			&m.LineItemID, &m.CreatedAt, &m.MissingCostStrategy); err != nil {
			return nil, fmt.Errorf("postgres: scanning modifiers row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func fetchDependencies(ctx context.Context, tx pgx.Tx, proposalID string) ([]preparation.RawDependency, error) {
	rows, err := tx.Query(ctx, `
		SELECT d.modifier_id, d.depends_on, d.type
		FROM modifier_dependencies d
		JOIN modifiers m ON m.id = d.modifier_id
		WHERE m.proposal_id = $1
		ORDER BY d.depends_on, d.modifier_id`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying modifier_dependencies: %w", err)
	}
	defer rows.Close()

	var out []preparation.RawDependency
	for rows.Next() {
		var d preparation.RawDependency
		if err := rows.Scan(&d.ModifierID, &d.DependsOn, &d.Type); err != nil {
			return nil, fmt.Errorf("postgres: scanning modifier_dependencies row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func fetchRules(ctx context.Context, tx pgx.Tx, proposalID string) ([]preparation.RawRule, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.modifier_id, r.logic
		FROM modifier_rules r
		JOIN modifiers m ON m.id = r.modifier_id
		WHERE m.proposal_id = $1`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying modifier_rules: %w", err)
	}
	defer rows.Close()

	var out []preparation.RawRule
	for rows.Next() {
		var raw []byte
		var r preparation.RawRule
		if err := rows.Scan(&r.ModifierID, &raw); err != nil {
			return nil, fmt.Errorf("postgres: scanning modifier_rules row: %w", err)
		}
		if err := json.Unmarshal(raw, &r.Logic); err != nil {
			return nil, fmt.Errorf("postgres: decoding rule logic jsonb: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchTaxConfig(ctx context.Context, tx pgx.Tx, proposalID string) (preparation.RawTaxConfig, error) {
	var cfg preparation.RawTaxConfig
	var jurisdictions []byte
	err := tx.QueryRow(ctx, `
		SELECT mode, retail_rate, use_tax_rate, jurisdictions, schema_version
		FROM proposal_tax_config WHERE proposal_id = $1`, proposalID,
	).Scan(&cfg.Mode, &cfg.RetailRate, &cfg.UseTaxRate, &jurisdictions, &cfg.SchemaVersion)
	if err != nil {
		return preparation.RawTaxConfig{}, fmt.Errorf("postgres: querying proposal_tax_config: %w", err)
	}
	if len(jurisdictions) > 0 {
		if err := json.Unmarshal(jurisdictions, &cfg.Jurisdictions); err != nil {
			return preparation.RawTaxConfig{}, fmt.Errorf("postgres: decoding jurisdictions jsonb: %w", err)
		}
	}
	return cfg, nil
}

func fetchMetadata(ctx context.Context, tx pgx.Tx, proposalID string) (proposalMeta, customerMeta, projectMeta map[string]any, err error) {
	var proposalRaw, customerRaw, projectRaw []byte
	err = tx.QueryRow(ctx, `
		SELECT proposal_meta, customer_meta, project_meta
		FROM proposals WHERE id = $1`, proposalID,
	).Scan(&proposalRaw, &customerRaw, &projectRaw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: querying proposals metadata: %w", err)
	}
	if err := json.Unmarshal(proposalRaw, &proposalMeta); err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: decoding proposal_meta jsonb: %w", err)
	}
	if err := json.Unmarshal(customerRaw, &customerMeta); err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: decoding customer_meta jsonb: %w", err)
	}
	if err := json.Unmarshal(projectRaw, &projectMeta); err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: decoding project_meta jsonb: %w", err)
	}
	return proposalMeta, customerMeta, projectMeta, nil
}
