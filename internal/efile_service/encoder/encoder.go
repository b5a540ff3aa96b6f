// Package encoder renders return records into the authority's XML intake
// format. Recipient TINs stay ciphertext everywhere else; this package is
// the one place they are decrypted, and the plaintext lives only inside the
// marshaled payload.
package encoder

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
	"github.com/sherpatax/golang_services/internal/efile_service/schema"
)

const (
	dateLayout = "2006-01-02"

	maxStateWithholdings = 2
)

// Encoder turns domain records into wire elements under one schema table.
type Encoder struct {
	table  *schema.Table
	keeper *fieldcrypt.Keeper
	logger *slog.Logger
}

// New builds an Encoder bound to a schema table and TIN keeper.
func New(table *schema.Table, keeper *fieldcrypt.Keeper, logger *slog.Logger) *Encoder {
	return &Encoder{
		table:  table,
		keeper: keeper,
		logger: logger.With(slog.String("component", "encoder")),
	}
}

// validateRecord enforces the batch-independent record rules: state
// withholding cardinality, correction back-references, and combined
// federal/state eligibility.
func (e *Encoder) validateRecord(rec domain.ReturnRecord) error {
	if rec.Boxes == nil {
		return &domain.EncodeError{RecordID: rec.ID, Msg: "record has no box data"}
	}
	if len(rec.StateWithholding) > maxStateWithholdings {
		return &domain.EncodeError{
			RecordID: rec.ID,
			Field:    "StateWithholding",
			Msg:      fmt.Sprintf("at most %d state withholding entries allowed, got %d", maxStateWithholdings, len(rec.StateWithholding)),
		}
	}
	if rec.Corrected && rec.OriginalRef == nil {
		return &domain.EncodeError{RecordID: rec.ID, Field: "OriginalRef", Msg: "correction lacks a reference to the accepted original"}
	}
	if len(rec.CFSFStates) > 0 {
		if !e.table.CFSFEligibleForm(rec.Boxes.Form()) {
			return &domain.EncodeError{
				RecordID: rec.ID,
				Field:    "CFSFStates",
				Msg:      fmt.Sprintf("form %s is not eligible for combined federal/state filing", rec.Boxes.Form()),
			}
		}
		for _, st := range rec.CFSFStates {
			if !e.table.CFSFEligibleState(st) {
				return &domain.EncodeError{
					RecordID: rec.ID,
					Field:    "CFSFStates",
					Msg:      fmt.Sprintf("state %s does not participate in combined federal/state filing", st),
				}
			}
		}
	}
	return nil
}

func (e *Encoder) encodeRecipient(rec domain.ReturnRecord) (recipientDetail, error) {
	r := rec.Recipient
	tin, err := e.keeper.Decrypt(r.TIN)
	if err != nil {
		return recipientDetail{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	detail := recipientDetail{
		TIN:                tin,
		TINSubmittedTypeCd: e.table.TINTypeCode(r.TINType),
		Mailing:            usMailing(r.Address),
	}
	if r.BusinessName != "" {
		detail.BusinessNameControlTxt = schema.BusinessNameControl(r.BusinessName)
		detail.BusinessName = &businessName{
			Line1: clip(r.BusinessName, 75),
			Line2: clip(r.BusinessName2, 75),
		}
	} else {
		detail.PersonNameControlTxt = schema.PersonNameControl(r.LastName)
		detail.PersonName = &personName{
			First:  clip(r.FirstName, 35),
			Middle: clip(r.MiddleName, 35),
			Last:   clip(r.LastName, 35),
			Suffix: clip(r.Suffix, 10),
		}
	}
	return detail, nil
}

func (e *Encoder) encodeIssuer(iss domain.Issuer) (issuerDetail, error) {
	tin, err := e.keeper.Decrypt(iss.TIN)
	if err != nil {
		return issuerDetail{}, fmt.Errorf("issuer: %w", err)
	}
	detail := issuerDetail{
		ForeignEntityInd:   "0",
		TIN:                tin,
		TINSubmittedTypeCd: e.table.TINTypeCode(iss.TINType),
		Mailing:            usMailing(iss.Address),
		PhoneNum:           formatPhone(iss.Phone),
	}
	if iss.BusinessName != "" {
		detail.BusinessNameControlTxt = schema.BusinessNameControl(iss.BusinessName)
		detail.BusinessName = &businessName{
			Line1: clip(iss.BusinessName, 75),
			Line2: clip(iss.BusinessName2, 75),
		}
	} else {
		detail.PersonNameControlTxt = schema.PersonNameControl(iss.LastName)
		detail.PersonName = &personName{
			First: clip(iss.FirstName, 35),
			Last:  clip(iss.LastName, 35),
		}
	}
	return detail, nil
}

func (e *Encoder) encodeTransmitter(t domain.Transmitter) (transmitterGrp, error) {
	tin, err := e.keeper.Decrypt(t.TIN)
	if err != nil {
		return transmitterGrp{}, fmt.Errorf("transmitter: %w", err)
	}
	return transmitterGrp{
		TIN:                  tin,
		TINSubmittedTypeCd:   e.table.TINTypeCode(t.TINType),
		TransmitterControlCd: clip(strings.ToUpper(t.TCC), 5),
		ForeignEntityInd:     indicator(t.ForeignEntity),
		PersonNm:             clip(t.ContactName, 35),
		Company: companyGrp{
			BusinessName: businessName{Line1: clip(t.CompanyName, 75)},
			Mailing:      usMailing(t.Address),
		},
		Contact:                contactNameGrp{PersonNm: clip(t.ContactName, 35)},
		ContactEmailAddressTxt: clip(t.ContactEmail, 50),
		ContactPhoneNum:        formatPhone(t.ContactPhone),
	}, nil
}

func stateTaxGroups(sw []domain.StateWithholding) []stateLocalTaxGrp {
	if len(sw) == 0 {
		return nil
	}
	groups := make([]stateLocalTaxGrp, 0, len(sw))
	for _, st := range sw {
		groups = append(groups, stateLocalTaxGrp{
			StateAbbreviationCd: strings.ToUpper(clip(st.StateCode, 2)),
			StateTax: stateTaxGrp{
				StateIDNum:           clip(st.StateIDNumber, 20),
				StateTaxWithheldAmt:  amount(st.Withheld),
				StateIncomeAmt:       amount(st.Income),
				StateDistributionAmt: "0",
			},
		})
	}
	return groups
}

func cfsfStateCodes(states []string) []string {
	if len(states) == 0 {
		return nil
	}
	out := make([]string, 0, len(states))
	for _, st := range states {
		out = append(out, strings.ToUpper(clip(st, 2)))
	}
	return out
}

func prevRecord(rec domain.ReturnRecord) *prevSubmittedRecGrp {
	if !rec.Corrected || rec.OriginalRef == nil {
		return nil
	}
	return &prevSubmittedRecGrp{UniqueRecordID: rec.OriginalRef.UniqueRecordID()}
}

func (e *Encoder) encodeNEC(rec domain.ReturnRecord, recordSeq int) (form1099NECDetail, error) {
	boxes := rec.Boxes.(domain.NECBoxes)
	recipient, err := e.encodeRecipient(rec)
	if err != nil {
		return form1099NECDetail{}, err
	}
	return form1099NECDetail{
		TaxYr:                       rec.TaxYear,
		RecordID:                    strconv.Itoa(recordSeq),
		CFSFElectionStateCd:         cfsfStateCodes(rec.CFSFStates),
		VoidInd:                     "0",
		CorrectedInd:                indicator(rec.Corrected),
		PrevSubmittedRec:            prevRecord(rec),
		Recipient:                   recipient,
		RecipientAccountNum:         clip(rec.Recipient.AccountNumber, 30),
		SecondTINNoticeInd:          "0",
		NonemployeeCompensationAmt:  positiveAmount(boxes.NonemployeeCompensation),
		DirectSaleAboveThresholdInd: indicator(boxes.DirectSales),
		FederalIncomeTaxWithheldAmt: positiveAmount(boxes.FederalTaxWithheld),
		StateLocalTax:               stateTaxGroups(rec.StateWithholding),
	}, nil
}

func (e *Encoder) encodeMISC(rec domain.ReturnRecord, recordSeq int) (form1099MISCDetail, error) {
	boxes := rec.Boxes.(domain.MISCBoxes)
	recipient, err := e.encodeRecipient(rec)
	if err != nil {
		return form1099MISCDetail{}, err
	}
	return form1099MISCDetail{
		TaxYr:                          rec.TaxYear,
		RecordID:                       strconv.Itoa(recordSeq),
		CFSFElectionStateCd:            cfsfStateCodes(rec.CFSFStates),
		VoidInd:                        "0",
		CorrectedInd:                   indicator(rec.Corrected),
		PrevSubmittedRec:               prevRecord(rec),
		Recipient:                      recipient,
		RecipientAccountNum:            clip(rec.Recipient.AccountNumber, 30),
		SecondTINNoticeInd:             "0",
		FATCAFilingRequirementInd:      indicator(boxes.FATCAFiling),
		RentAmt:                        positiveAmount(boxes.Rents),
		RoyaltyAmt:                     positiveAmount(boxes.Royalties),
		OtherIncomeAmt:                 positiveAmount(boxes.OtherIncome),
		FederalIncomeTaxWithheldAmt:    positiveAmount(boxes.FederalTaxWithheld),
		FishingBoatProceedsAmt:         positiveAmount(boxes.FishingBoatProceeds),
		MedicalHealthCarePaymentAmt:    positiveAmount(boxes.MedicalPayments),
		DirectSaleAboveThresholdInd:    indicator(boxes.DirectSales),
		SubstitutePaymentAmt:           positiveAmount(boxes.SubstitutePayments),
		CropInsuranceProceedAmt:        positiveAmount(boxes.CropInsuranceProceeds),
		GrossProceedsPaidToAttorneyAmt: positiveAmount(boxes.AttorneyProceeds),
		FishPurchasedForResaleAmt:      positiveAmount(boxes.FishPurchasedForResale),
		Section409ADeferralAmt:         positiveAmount(boxes.Section409ADeferrals),
		NonqualifiedDeferredCompAmt:    positiveAmount(boxes.NonqualifiedDeferredComp),
		StateLocalTax:                  stateTaxGroups(rec.StateWithholding),
	}, nil
}

func (e *Encoder) encodeRealEstate(rec domain.ReturnRecord, recordSeq int) (form1099SDetail, error) {
	boxes := rec.Boxes.(domain.RealEstateBoxes)
	recipient, err := e.encodeRecipient(rec)
	if err != nil {
		return form1099SDetail{}, err
	}
	return form1099SDetail{
		TaxYr:                          rec.TaxYear,
		RecordID:                       strconv.Itoa(recordSeq),
		VoidInd:                        "0",
		CorrectedInd:                   indicator(rec.Corrected),
		PrevSubmittedRec:               prevRecord(rec),
		Recipient:                      recipient,
		RecipientAccountNum:            clip(rec.Recipient.AccountNumber, 30),
		ClosingDt:                      formatDate(boxes.ClosingDate),
		GrossProceedsAmt:               positiveAmount(boxes.GrossProceeds),
		AddressOrLegalDescTxt:          clip(boxes.PropertyDescription, 100),
		TransferorRcvdConsiderationInd: indicator(boxes.ReceivedConsideration),
		TransferorForeignPersonInd:     indicator(boxes.ForeignTransferor),
		BuyerRealEstateTaxAmt:          positiveAmount(boxes.BuyersRealEstateTax),
	}, nil
}

func (e *Encoder) encodeMortgage(rec domain.ReturnRecord, recordSeq int) (form1098Detail, error) {
	boxes := rec.Boxes.(domain.MortgageBoxes)
	recipient, err := e.encodeRecipient(rec)
	if err != nil {
		return form1098Detail{}, err
	}
	detail := form1098Detail{
		TaxYr:                        rec.TaxYear,
		RecordID:                     strconv.Itoa(recordSeq),
		VoidInd:                      "0",
		CorrectedInd:                 indicator(rec.Corrected),
		PrevSubmittedRec:             prevRecord(rec),
		Recipient:                    recipient,
		RecipientAccountNum:          clip(rec.Recipient.AccountNumber, 30),
		MortgageInterestReceivedAmt:  positiveAmount(boxes.InterestReceived),
		OutstandingMortgPrincipalAmt: positiveAmount(boxes.OutstandingPrincipal),
		MortgageOriginationDt:        formatDate(boxes.OriginationDate),
		OverpaidInterestRefundAmt:    positiveAmount(boxes.OverpaidInterestRefund),
		MortgageInsurancePremiumsAmt: positiveAmount(boxes.InsurancePremiums),
		PrinResPurchasePointsPaidAmt: positiveAmount(boxes.PointsPaid),
		PropAddrSameBorrowerAddrInd:  indicator(boxes.PropertySameAsBorrower),
		OtherTxt:                     clip(boxes.OtherInfo, 100),
		MortgageAcquisitionDt:        formatDate(boxes.AcquisitionDate),
	}
	if boxes.PropertyDescription != "" && !boxes.PropertySameAsBorrower {
		detail.PropertyAddress = &propertyAddressGrp{PropertyDesc: clip(boxes.PropertyDescription, 100)}
	}
	if boxes.PropertiesCount > 0 {
		detail.PropertiesSecuringMortgageCnt = strconv.Itoa(boxes.PropertiesCount)
	}
	return detail, nil
}

func usMailing(a domain.Address) mailingAddressGrp {
	return mailingAddressGrp{US: usAddress{
		AddressLine1Txt:     clip(a.Line1, 35),
		AddressLine2Txt:     clip(a.Line2, 35),
		CityNm:              clip(a.City, 40),
		StateAbbreviationCd: strings.ToUpper(clip(a.State, 2)),
		ZIPCd:               clip(strings.ReplaceAll(a.ZIP, "-", ""), 9),
	}}
}

// amount renders a decimal with two fixed places.
func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// positiveAmount renders a decimal with two fixed places, or empty when the
// value is not positive so the element is omitted.
func positiveAmount(d decimal.Decimal) string {
	if !d.IsPositive() {
		return ""
	}
	return d.StringFixed(2)
}

func indicator(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// formatPhone keeps the first ten digits, or empty when fewer remain.
func formatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if b.Len() == 10 {
			break
		}
	}
	if b.Len() < 10 {
		return ""
	}
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
