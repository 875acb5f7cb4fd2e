package database

import (
	"context"
	"database/sql"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
)

// SaveCompany inserts or updates a company and replaces its accountant assignments.
func (d *Database) SaveCompany(ctx context.Context, company *models.Company) error {
	if company.CreatedAt.IsZero() {
		company.CreatedAt = d.timestamp()
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := saveCompanyTx(ctx, tx, company); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}, "save company")
	if err != nil {
		return apperrors.NewDatabaseError("save company", err)
	}
	return nil
}

func saveCompanyTx(ctx context.Context, tx *sql.Tx, company *models.Company) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO companies (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, owner_id = excluded.owner_id`,
		company.ID, company.Name, company.OwnerID, company.CreatedAt.UTC()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM company_accountants WHERE company_id = ?`, company.ID); err != nil {
		return err
	}
	for _, accountantID := range company.AccountantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO company_accountants (company_id, accountant_id) VALUES (?, ?)`,
			company.ID, accountantID); err != nil {
			return err
		}
	}
	return nil
}

// GetCompany returns the company with id, or nil when it does not exist.
func (d *Database) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM companies WHERE id = ?`, id).
		Scan(&company.ID, &company.Name, &company.OwnerID, &company.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get company", err)
	}

	accountants, err := d.accountantsByCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	company.AccountantIDs = accountants[id]
	if company.AccountantIDs == nil {
		company.AccountantIDs = []string{}
	}
	return &company, nil
}

// ListCompanies returns every company with its accountant ids, ordered by name.
func (d *Database) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, owner_id, created_at FROM companies ORDER BY name, id`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list companies", err)
	}

	companies := make([]models.Company, 0)
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, apperrors.NewDatabaseError("list companies", err)
		}
		companies = append(companies, c)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, apperrors.NewDatabaseError("list companies", err)
	}

	// rows must be closed first: the pool may hold a single connection
	accountants, err := d.accountantsByCompany(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range companies {
		companies[i].AccountantIDs = accountants[companies[i].ID]
		if companies[i].AccountantIDs == nil {
			companies[i].AccountantIDs = []string{}
		}
	}
	return companies, nil
}

// accountantsByCompany loads assignments for one company, or all when companyID is empty.
func (d *Database) accountantsByCompany(ctx context.Context, companyID string) (map[string][]string, error) {
	query := `SELECT company_id, accountant_id FROM company_accountants`
	var args []interface{}
	if companyID != "" {
		query += ` WHERE company_id = ?`
		args = append(args, companyID)
	}
	query += ` ORDER BY company_id, accountant_id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list accountants", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]string)
	for rows.Next() {
		var cid, aid string
		if err := rows.Scan(&cid, &aid); err != nil {
			return nil, apperrors.NewDatabaseError("list accountants", err)
		}
		out[cid] = append(out[cid], aid)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list accountants", err)
	}
	return out, nil
}
