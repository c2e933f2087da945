package models

// Holding is the current position in one security for one company.
// Invariant: TotalCost == Quantity * AvgCostPrice (within float tolerance).
type Holding struct {
	ID           int64   `json:"id"`
	CompanyID    int64   `json:"company_id"`
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	AvgCostPrice float64 `json:"avg_cost_price"`
	TotalCost    float64 `json:"total_cost"`
}

// HoldingsSummary is the API shape for the current portfolio.
type HoldingsSummary struct {
	Holdings           []Holding `json:"holdings"`
	TotalPortfolioCost float64   `json:"total_portfolio_cost"`
}
