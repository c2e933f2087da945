package models

import "time"

// WinstVerlies is the profit & loss statement for one fiscal year.
// Field names follow the Dutch jaarrekening line items.
type WinstVerlies struct {
	GerealiseerdeKoersresultaten float64 `json:"gerealiseerde_koersresultaten"`
	Dividendinkomsten            float64 `json:"dividendinkomsten"`
	RenteInkomsten               float64 `json:"rente_inkomsten"`
	Transactiekosten             float64 `json:"transactiekosten"`
	OverigeKosten                float64 `json:"overige_kosten"`
	ResultaatVoorBelasting       float64 `json:"resultaat_voor_belasting"`
	VPB                          float64 `json:"vpb"`
	ResultaatNaBelasting         float64 `json:"resultaat_na_belasting"`
}

// BalansActiva is the asset side of the balance sheet, valued at cost.
type BalansActiva struct {
	Effectenportefeuille float64 `json:"effectenportefeuille"`
	LiquideMiddelen      float64 `json:"liquide_middelen"`
	Totaal               float64 `json:"totaal"`
}

// BalansPassiva is the liabilities + equity side.
type BalansPassiva struct {
	GestortKapitaal             float64 `json:"gestort_kapitaal"`
	WinstreserveVoorgaandeJaren float64 `json:"winstreserve_voorgaande_jaren"`
	ResultaatBoekjaar           float64 `json:"resultaat_boekjaar"`
	VPBSchuld                   float64 `json:"vpb_schuld"`
	Totaal                      float64 `json:"totaal"`
}

type Balans struct {
	Activa  BalansActiva  `json:"activa"`
	Passiva BalansPassiva `json:"passiva"`
}

// AnnualReport is the stored jaarrekening snapshot for (company, year).
// Regenerating for the same year overwrites in place.
type AnnualReport struct {
	ID           int64        `json:"id"`
	CompanyID    int64        `json:"company_id"`
	Year         int          `json:"year"`
	Balans       Balans       `json:"balans"`
	WinstVerlies WinstVerlies `json:"winst_verlies"`
	Status       string       `json:"status"` // draft / final
	GeneratedAt  time.Time    `json:"generated_at"`
}

// VPBFiling is the stored corporate tax snapshot for (company, year).
type VPBFiling struct {
	ID            int64   `json:"id"`
	CompanyID     int64   `json:"company_id"`
	Year          int     `json:"year"`
	TaxableProfit float64 `json:"taxable_profit"`
	VPBAmount     float64 `json:"vpb_amount"`
	Status        string  `json:"status"` // draft / ready / filed
}
