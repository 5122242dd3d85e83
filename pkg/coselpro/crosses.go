package coselpro

import (
	"context"
	"encoding/json"
	"fmt"
)

const rpcXCompany = "xcompany"

// ============================================================================
// Company cross reference
// ============================================================================

// XRisk is a risk classification attached to a company status.
type XRisk struct {
	Risk   *string `json:"risk"`
	Symbol *string `json:"symbol"`
	RiskID *int    `json:"risk_id"`
}

// XCompany is the cross-referenced status of a company as manufacturer,
// supplier and customer, with the associated risks.
type XCompany struct {
	CompanyID   int     `json:"company_id"`
	Company     string  `json:"company"`
	ManStatusID *int    `json:"man_status_id"`
	ManStatus   *string `json:"man_status"`
	ManRisk     *XRisk  `json:"man_risk"`
	SupStatusID *int    `json:"sup_status_id"`
	SupStatus   *string `json:"sup_status"`
	SupRisk     *XRisk  `json:"sup_risk"`
	CstStatusID *int    `json:"cst_status_id"`
	CstStatus   *string `json:"cst_status"`
	CstRisk     *XRisk  `json:"cst_risk"`
	Reliability float64 `json:"reliability"`
}

// XCompanyRequest selects the company to look up. Nil filters are sent as
// null and mean "any".
type XCompanyRequest struct {
	Company         string `json:"company"`
	DivisionIDs     []int  `json:"division_ids"`
	XCompanyTypeIDs []int  `json:"xcompany_type_ids"`
}

// XCompany looks up the cross reference of a company through the xcompany RPC.
func (s *Session) XCompany(ctx context.Context, req XCompanyRequest) (*XCompany, error) {
	b, err := s.RPC(rpcXCompany, req)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := b.Decode(ctx, &raw); err != nil {
		return nil, err
	}

	var out XCompany
	if err := json.Unmarshal(unwrapSingleRow(raw), &out); err != nil {
		return nil, fmt.Errorf("incorrect xcompany response format: %w", err)
	}
	return &out, nil
}
