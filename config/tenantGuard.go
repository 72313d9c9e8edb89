package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/tally_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin enforces multi-tenant isolation by automatically scoping
// queries/updates/deletes to the request's company_guid when the model has a
// company_guid column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include company_guid manually.
// - Admin/internal bypass is explicit via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	companyGuid := companyGuidFromContext(ctx)
	if companyGuid == "" {
		return
	}

	// Only apply if the current model/table includes a company_guid column.
	if db.Statement.Schema == nil {
		return
	}
	hasCompanyGuid := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "company_guid") {
			hasCompanyGuid = true
			break
		}
	}
	if !hasCompanyGuid {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasCompanyGuid(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "company_guid"},
				Value:  companyGuid,
			},
		},
	})
}

func companyGuidFromContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyCompanyGuid); ok {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); ok && v {
		return true
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin); ok && v {
		return true
	}
	return false
}

func whereHasCompanyGuid(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasCompanyGuid(e) {
			return true
		}
	}
	return false
}

func exprHasCompanyGuid(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsCompanyGuid(v.Column)
	case clause.Neq:
		return colIsCompanyGuid(v.Column)
	case clause.Gt:
		return colIsCompanyGuid(v.Column)
	case clause.Gte:
		return colIsCompanyGuid(v.Column)
	case clause.Lt:
		return colIsCompanyGuid(v.Column)
	case clause.Lte:
		return colIsCompanyGuid(v.Column)
	case clause.IN:
		return colIsCompanyGuid(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasCompanyGuid(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasCompanyGuid(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "company_guid")
	default:
		return false
	}
}

func colIsCompanyGuid(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "company_guid")
	case clause.Column:
		return strings.EqualFold(c.Name, "company_guid")
	default:
		return false
	}
}
