package reports

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/utils"
)

// FiscaleWinst reconciles the P&L lines into the taxable profit.
type FiscaleWinst struct {
	GerealiseerdeKoersresultaten float64 `json:"gerealiseerde_koersresultaten"`
	Dividendinkomsten            float64 `json:"dividendinkomsten"`
	RenteInkomsten               float64 `json:"rente_inkomsten"`
	AftrekbareKosten             float64 `json:"aftrekbare_kosten"`
	BelastbareWinst              float64 `json:"belastbare_winst"`
}

// EffectenPositie is one line of the securities specification.
type EffectenPositie struct {
	Ticker           string  `json:"ticker"`
	Naam             string  `json:"naam"`
	Aantal           float64 `json:"aantal"`
	KostprijsPerStuk float64 `json:"kostprijs_per_stuk"`
	TotaleKostprijs  float64 `json:"totale_kostprijs"`
}

// TransactieOverzicht is the per-type transaction volume for the year.
type TransactieOverzicht struct {
	Aankopen      float64 `json:"aankopen"`
	Verkopen      float64 `json:"verkopen"`
	Dividend      float64 `json:"dividend"`
	Rente         float64 `json:"rente"`
	Kosten        float64 `json:"kosten"`
	Stortingen    float64 `json:"stortingen"`
	Onttrekkingen float64 `json:"onttrekkingen"`
}

// Aangifte is the complete VPB filing document for one fiscal year, with all
// fields needed to file via Mijn Belastingdienst Zakelijk. Submission itself
// stays manual.
type Aangifte struct {
	BVNaam        string              `json:"bv_naam"`
	KvKNummer     string              `json:"kvk_nummer"`
	BoekjaarStart string              `json:"boekjaar_start"`
	BoekjaarEind  string              `json:"boekjaar_eind"`
	Jaar          int                 `json:"jaar"`
	Deadline      string              `json:"deadline"`
	Balans        models.Balans       `json:"balans"`
	WinstVerlies  models.WinstVerlies `json:"winst_verlies"`
	FiscaleWinst  FiscaleWinst        `json:"fiscale_winst"`
	VPB           VPBBreakdown        `json:"vpb"`
	Effecten      []EffectenPositie   `json:"effecten"`
	Transacties   TransactieOverzicht `json:"transacties"`
	Status        string              `json:"status"`
}

// Aangifte assembles the filing document from the stored report, filing,
// current holdings and the year's transactions. The report and filing must
// have been generated first.
func (g *Generator) Aangifte(companyID int64, year int) (*Aangifte, error) {
	var bvNaam string
	var kvk sql.NullString
	err := g.db.QueryRow(
		"SELECT name, kvk_number FROM companies WHERE id = ?", companyID).
		Scan(&bvNaam, &kvk)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("company %d not found", companyID)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying company: %w", err)
	}
	kvkNummer := kvk.String
	if kvkNummer == "" {
		kvkNummer = "Nog invullen"
	}

	report, err := g.GetReport(companyID, year)
	if err != nil {
		return nil, err
	}
	filing, err := g.GetFiling(companyID, year)
	if err != nil {
		return nil, err
	}

	effecten, err := g.effectenSpecificatie(companyID)
	if err != nil {
		return nil, err
	}

	overzicht, err := g.transactieOverzicht(companyID, year)
	if err != nil {
		return nil, err
	}

	wv := report.WinstVerlies
	return &Aangifte{
		BVNaam:        bvNaam,
		KvKNummer:     kvkNummer,
		BoekjaarStart: fmt.Sprintf("01-01-%d", year),
		BoekjaarEind:  fmt.Sprintf("31-12-%d", year),
		Jaar:          year,
		Deadline:      utils.FormatDutchDate(FilingDeadline(year)),
		Balans:        report.Balans,
		WinstVerlies:  wv,
		FiscaleWinst: FiscaleWinst{
			GerealiseerdeKoersresultaten: wv.GerealiseerdeKoersresultaten,
			Dividendinkomsten:            wv.Dividendinkomsten,
			RenteInkomsten:               wv.RenteInkomsten,
			AftrekbareKosten:             utils.RoundCents(wv.Transactiekosten + wv.OverigeKosten),
			BelastbareWinst:              utils.RoundCents(filing.TaxableProfit),
		},
		VPB:         BreakdownVPB(filing.TaxableProfit),
		Effecten:    effecten,
		Transacties: *overzicht,
		Status:      filing.Status,
	}, nil
}

// effectenSpecificatie lists the non-zero current holdings.
func (g *Generator) effectenSpecificatie(companyID int64) ([]EffectenPositie, error) {
	rows, err := g.db.Query(`
		SELECT ticker, name, quantity, avg_cost_price, total_cost
		FROM holdings WHERE company_id = ? AND quantity > 0 ORDER BY ticker`, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings: %w", err)
	}
	defer rows.Close()

	var posities []EffectenPositie
	for rows.Next() {
		var p EffectenPositie
		if err := rows.Scan(&p.Ticker, &p.Naam, &p.Aantal, &p.KostprijsPerStuk, &p.TotaleKostprijs); err != nil {
			return nil, fmt.Errorf("error scanning holding row: %w", err)
		}
		p.KostprijsPerStuk = utils.RoundCents(p.KostprijsPerStuk)
		p.TotaleKostprijs = utils.RoundCents(p.TotaleKostprijs)
		posities = append(posities, p)
	}
	return posities, rows.Err()
}

func (g *Generator) transactieOverzicht(companyID int64, year int) (*TransactieOverzicht, error) {
	rows, err := g.db.Query(`
		SELECT type, amount
		FROM transactions
		WHERE company_id = ? AND CAST(strftime('%Y', date) AS INTEGER) = ?`,
		companyID, year)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for year %d: %w", year, err)
	}
	defer rows.Close()

	var o TransactieOverzicht
	for rows.Next() {
		var txType string
		var amount float64
		if err := rows.Scan(&txType, &amount); err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		abs := math.Abs(amount)
		switch txType {
		case models.TxBuy:
			o.Aankopen += abs
		case models.TxSell:
			o.Verkopen += abs
		case models.TxDividend:
			o.Dividend += abs
		case models.TxInterest:
			o.Rente += abs
		case models.TxCost:
			o.Kosten += abs
		case models.TxDeposit:
			o.Stortingen += abs
		case models.TxWithdrawal:
			o.Onttrekkingen += abs
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	o.Aankopen = utils.RoundCents(o.Aankopen)
	o.Verkopen = utils.RoundCents(o.Verkopen)
	o.Dividend = utils.RoundCents(o.Dividend)
	o.Rente = utils.RoundCents(o.Rente)
	o.Kosten = utils.RoundCents(o.Kosten)
	o.Stortingen = utils.RoundCents(o.Stortingen)
	o.Onttrekkingen = utils.RoundCents(o.Onttrekkingen)
	return &o, nil
}
