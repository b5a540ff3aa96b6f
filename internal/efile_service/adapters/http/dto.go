package http

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
)

// Request DTOs. TINs arrive in plaintext over the API surface and are
// encrypted at the boundary; nothing past this package sees them in clear.

type addressDTO struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZIP     string `json:"zip"`
	Country string `json:"country,omitempty"`
}

type issuerDTO struct {
	TIN           string     `json:"tin"`
	TINType       string     `json:"tin_type"`
	BusinessName  string     `json:"business_name,omitempty"`
	BusinessName2 string     `json:"business_name_2,omitempty"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Address       addressDTO `json:"address"`
	Phone         string     `json:"phone,omitempty"`
	ContactName   string     `json:"contact_name,omitempty"`
	ContactEmail  string     `json:"contact_email,omitempty"`
}

type recipientDTO struct {
	TIN           string     `json:"tin"`
	TINType       string     `json:"tin_type"`
	FirstName     string     `json:"first_name,omitempty"`
	MiddleName    string     `json:"middle_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Suffix        string     `json:"suffix,omitempty"`
	BusinessName  string     `json:"business_name,omitempty"`
	BusinessName2 string     `json:"business_name_2,omitempty"`
	Address       addressDTO `json:"address"`
	AccountNumber string     `json:"account_number,omitempty"`
}

type stateWithholdingDTO struct {
	StateCode     string `json:"state_code"`
	StateIDNumber string `json:"state_id_number,omitempty"`
	Income        string `json:"income"`
	Withheld      string `json:"withheld"`
}

// boxesDTO is a superset of all form box fields; FormType on the record
// selects which subset is read. Amounts are decimal strings.
type boxesDTO struct {
	// 1099-NEC
	NonemployeeCompensation string `json:"nonemployee_compensation,omitempty"`
	DirectSales             bool   `json:"direct_sales,omitempty"`
	FederalTaxWithheld      string `json:"federal_tax_withheld,omitempty"`

	// 1099-MISC
	Rents                    string `json:"rents,omitempty"`
	Royalties                string `json:"royalties,omitempty"`
	OtherIncome              string `json:"other_income,omitempty"`
	FishingBoatProceeds      string `json:"fishing_boat_proceeds,omitempty"`
	MedicalPayments          string `json:"medical_payments,omitempty"`
	SubstitutePayments       string `json:"substitute_payments,omitempty"`
	CropInsuranceProceeds    string `json:"crop_insurance_proceeds,omitempty"`
	AttorneyProceeds         string `json:"attorney_proceeds,omitempty"`
	FishPurchasedForResale   string `json:"fish_purchased_for_resale,omitempty"`
	Section409ADeferrals     string `json:"section_409a_deferrals,omitempty"`
	NonqualifiedDeferredComp string `json:"nonqualified_deferred_comp,omitempty"`
	FATCAFiling              bool   `json:"fatca_filing,omitempty"`

	// 1099-S
	ClosingDate           string `json:"closing_date,omitempty"`
	GrossProceeds         string `json:"gross_proceeds,omitempty"`
	PropertyDescription   string `json:"property_description,omitempty"`
	ReceivedConsideration bool   `json:"received_consideration,omitempty"`
	ForeignTransferor     bool   `json:"foreign_transferor,omitempty"`
	BuyersRealEstateTax   string `json:"buyers_real_estate_tax,omitempty"`

	// 1098
	InterestReceived       string `json:"interest_received,omitempty"`
	OutstandingPrincipal   string `json:"outstanding_principal,omitempty"`
	OriginationDate        string `json:"origination_date,omitempty"`
	OverpaidInterestRefund string `json:"overpaid_interest_refund,omitempty"`
	InsurancePremiums      string `json:"insurance_premiums,omitempty"`
	PointsPaid             string `json:"points_paid,omitempty"`
	PropertySameAsBorrower bool   `json:"property_same_as_borrower,omitempty"`
	PropertiesCount        int    `json:"properties_count,omitempty"`
	OtherInfo              string `json:"other_info,omitempty"`
	AcquisitionDate        string `json:"acquisition_date,omitempty"`
}

type recordDTO struct {
	ID               string                `json:"id"`
	FilerID          string                `json:"filer_id"`
	FormType         string                `json:"form_type"`
	Recipient        recipientDTO          `json:"recipient"`
	Boxes            boxesDTO              `json:"boxes"`
	StateWithholding []stateWithholdingDTO `json:"state_withholding,omitempty"`
	CFSFStates       []string              `json:"cfsf_states,omitempty"`
	OriginalRef      *recordRefDTO         `json:"original_ref,omitempty"`
}

type recordRefDTO struct {
	ReceiptID     string `json:"receipt_id"`
	SubmissionSeq int    `json:"submission_seq"`
	RecordSeq     int    `json:"record_seq"`
}

type submissionDTO struct {
	Issuer         issuerDTO   `json:"issuer"`
	Records        []recordDTO `json:"records"`
	SignaturePIN   string      `json:"signature_pin,omitempty"`
	SignatureTitle string      `json:"signature_title,omitempty"`
	SignerName     string      `json:"signer_name,omitempty"`
}

type submitRequest struct {
	TaxYear     int             `json:"tax_year"`
	Submissions []submissionDTO `json:"submissions"`
}

type statusCheckRequest struct {
	ReceiptID string `json:"receipt_id"`
}

type setPreparerRequest struct {
	FilerID    string `json:"filer_id"`
	TaxYear    int    `json:"tax_year"`
	PreparedBy string `json:"prepared_by"`
}

func (d addressDTO) toDomain() domain.Address {
	country := d.Country
	if country == "" {
		country = "US"
	}
	return domain.Address{
		Line1: d.Line1, Line2: d.Line2, City: d.City,
		State: d.State, ZIP: d.ZIP, Country: country,
	}
}

func (d submissionDTO) toDomain(taxYear int, keeper *fieldcrypt.Keeper) (domain.Submission, error) {
	issuerTIN, err := keeper.Encrypt(d.Issuer.TIN)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("issuer tin: %w", err)
	}
	sub := domain.Submission{
		Issuer: domain.Issuer{
			TIN:           issuerTIN,
			TINType:       domain.TINType(d.Issuer.TINType),
			BusinessName:  d.Issuer.BusinessName,
			BusinessName2: d.Issuer.BusinessName2,
			FirstName:     d.Issuer.FirstName,
			LastName:      d.Issuer.LastName,
			Address:       d.Issuer.Address.toDomain(),
			Phone:         d.Issuer.Phone,
			ContactName:   d.Issuer.ContactName,
			ContactEmail:  d.Issuer.ContactEmail,
		},
		TaxYear:        taxYear,
		SignaturePIN:   d.SignaturePIN,
		SignatureTitle: d.SignatureTitle,
		SignerName:     d.SignerName,
	}
	for _, rd := range d.Records {
		rec, err := rd.toDomain(taxYear, keeper)
		if err != nil {
			return domain.Submission{}, err
		}
		sub.Records = append(sub.Records, rec)
	}
	return sub, nil
}

func (d recordDTO) toDomain(taxYear int, keeper *fieldcrypt.Keeper) (domain.ReturnRecord, error) {
	tin, err := keeper.Encrypt(d.Recipient.TIN)
	if err != nil {
		return domain.ReturnRecord{}, fmt.Errorf("record %s recipient tin: %w", d.ID, err)
	}
	boxes, err := d.Boxes.toDomain(domain.FormType(d.FormType))
	if err != nil {
		return domain.ReturnRecord{}, fmt.Errorf("record %s: %w", d.ID, err)
	}
	rec := domain.ReturnRecord{
		ID:      d.ID,
		FilerID: d.FilerID,
		TaxYear: taxYear,
		Recipient: domain.Recipient{
			FirstName:     d.Recipient.FirstName,
			MiddleName:    d.Recipient.MiddleName,
			LastName:      d.Recipient.LastName,
			Suffix:        d.Recipient.Suffix,
			BusinessName:  d.Recipient.BusinessName,
			BusinessName2: d.Recipient.BusinessName2,
			TIN:           tin,
			TINType:       domain.TINType(d.Recipient.TINType),
			Address:       d.Recipient.Address.toDomain(),
			AccountNumber: d.Recipient.AccountNumber,
		},
		Boxes:      boxes,
		CFSFStates: d.CFSFStates,
	}
	if d.OriginalRef != nil {
		rec.OriginalRef = &domain.RecordRef{
			ReceiptID:     d.OriginalRef.ReceiptID,
			SubmissionSeq: d.OriginalRef.SubmissionSeq,
			RecordSeq:     d.OriginalRef.RecordSeq,
		}
	}
	for _, sw := range d.StateWithholding {
		income, err := parseAmount(sw.Income)
		if err != nil {
			return domain.ReturnRecord{}, fmt.Errorf("record %s state income: %w", d.ID, err)
		}
		withheld, err := parseAmount(sw.Withheld)
		if err != nil {
			return domain.ReturnRecord{}, fmt.Errorf("record %s state withheld: %w", d.ID, err)
		}
		rec.StateWithholding = append(rec.StateWithholding, domain.StateWithholding{
			StateCode:     sw.StateCode,
			StateIDNumber: sw.StateIDNumber,
			Income:        income,
			Withheld:      withheld,
		})
	}
	return rec, nil
}

func (d boxesDTO) toDomain(formType domain.FormType) (domain.FormBoxes, error) {
	switch formType {
	case domain.Form1099NEC:
		comp, err := parseAmount(d.NonemployeeCompensation)
		if err != nil {
			return nil, err
		}
		fed, err := parseAmount(d.FederalTaxWithheld)
		if err != nil {
			return nil, err
		}
		return domain.NECBoxes{
			NonemployeeCompensation: comp,
			DirectSales:             d.DirectSales,
			FederalTaxWithheld:      fed,
		}, nil
	case domain.Form1099MISC:
		boxes := domain.MISCBoxes{DirectSales: d.DirectSales, FATCAFiling: d.FATCAFiling}
		fields := []struct {
			raw    string
			target *decimal.Decimal
		}{
			{d.Rents, &boxes.Rents},
			{d.Royalties, &boxes.Royalties},
			{d.OtherIncome, &boxes.OtherIncome},
			{d.FederalTaxWithheld, &boxes.FederalTaxWithheld},
			{d.FishingBoatProceeds, &boxes.FishingBoatProceeds},
			{d.MedicalPayments, &boxes.MedicalPayments},
			{d.SubstitutePayments, &boxes.SubstitutePayments},
			{d.CropInsuranceProceeds, &boxes.CropInsuranceProceeds},
			{d.AttorneyProceeds, &boxes.AttorneyProceeds},
			{d.FishPurchasedForResale, &boxes.FishPurchasedForResale},
			{d.Section409ADeferrals, &boxes.Section409ADeferrals},
			{d.NonqualifiedDeferredComp, &boxes.NonqualifiedDeferredComp},
		}
		for _, f := range fields {
			v, err := parseAmount(f.raw)
			if err != nil {
				return nil, err
			}
			*f.target = v
		}
		return boxes, nil
	case domain.Form1099S:
		proceeds, err := parseAmount(d.GrossProceeds)
		if err != nil {
			return nil, err
		}
		reTax, err := parseAmount(d.BuyersRealEstateTax)
		if err != nil {
			return nil, err
		}
		closing, err := parseDate(d.ClosingDate)
		if err != nil {
			return nil, err
		}
		return domain.RealEstateBoxes{
			ClosingDate:           closing,
			GrossProceeds:         proceeds,
			PropertyDescription:   d.PropertyDescription,
			ReceivedConsideration: d.ReceivedConsideration,
			ForeignTransferor:     d.ForeignTransferor,
			BuyersRealEstateTax:   reTax,
		}, nil
	case domain.Form1098:
		boxes := domain.MortgageBoxes{
			PropertySameAsBorrower: d.PropertySameAsBorrower,
			PropertyDescription:    d.PropertyDescription,
			PropertiesCount:        d.PropertiesCount,
			OtherInfo:              d.OtherInfo,
		}
		fields := []struct {
			raw    string
			target *decimal.Decimal
		}{
			{d.InterestReceived, &boxes.InterestReceived},
			{d.OutstandingPrincipal, &boxes.OutstandingPrincipal},
			{d.OverpaidInterestRefund, &boxes.OverpaidInterestRefund},
			{d.InsurancePremiums, &boxes.InsurancePremiums},
			{d.PointsPaid, &boxes.PointsPaid},
		}
		for _, f := range fields {
			v, err := parseAmount(f.raw)
			if err != nil {
				return nil, err
			}
			*f.target = v
		}
		var err error
		if boxes.OriginationDate, err = parseDate(d.OriginationDate); err != nil {
			return nil, err
		}
		if boxes.AcquisitionDate, err = parseDate(d.AcquisitionDate); err != nil {
			return nil, err
		}
		return boxes, nil
	}
	return nil, fmt.Errorf("unsupported form type %q", formType)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	return &t, nil
}
