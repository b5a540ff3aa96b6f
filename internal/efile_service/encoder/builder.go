package encoder

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
)

// BuildInput is everything needed to render one transmission.
type BuildInput struct {
	Transmitter domain.Transmitter
	Submissions []domain.Submission
	TaxYear     int
	Environment domain.Environment
	SoftwareID  string
	PriorYear   bool

	// UTID overrides the generated identifier; used by replays.
	UTID string
}

// BuildTransmission renders submissions into a complete, frozen wire payload.
// All records must be originals or all corrections; record and submission
// sequences are 1-based and contiguous, and the returned sequence map records
// where each ReturnRecord landed.
func (e *Encoder) BuildTransmission(in BuildInput) (*domain.Transmission, error) {
	txType, totalRecords, err := classifyBatch(in.Submissions)
	if err != nil {
		return nil, err
	}
	for _, sub := range in.Submissions {
		for _, rec := range sub.Records {
			if err := e.validateRecord(rec); err != nil {
				return nil, err
			}
		}
	}

	utid := in.UTID
	if utid == "" {
		utid = GenerateUTID(in.Transmitter.TCC, in.Environment)
	}

	transmitter, err := e.encodeTransmitter(in.Transmitter)
	if err != nil {
		return nil, err
	}

	doc := irTransmission{
		Xmlns:          e.table.Namespace,
		XmlnsXsi:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: e.table.Namespace + " ../MSG/IRS-IRIntakeTransmissionMessage.xsd",
		Manifest: manifest{
			SchemaVersionNum:      e.table.SchemaVersionNum,
			UniqueTransmissionID:  utid,
			TaxYr:                 in.TaxYear,
			PriorYearDataInd:      indicator(in.PriorYear),
			TransmissionTypeCd:    string(txType),
			TestCd:                in.Environment.TestCd(),
			Transmitter:           transmitter,
			VendorCd:              "I",
			SoftwareID:            clip(in.SoftwareID, 10),
			TotalIssuerFormCnt:    len(in.Submissions),
			TotalRecipientFormCnt: totalRecords,
			PaperSubmissionInd:    "0",
			MediaSourceCd:         "M",
			SubmissionChannelCd:   "A2A",
		},
	}

	recordMap := make(domain.RecordSequenceMap, len(in.Submissions))
	filerSet := map[string]bool{}
	var filers []string
	cfsfElected := false
	for i, sub := range in.Submissions {
		submissionSeq := i + 1
		grp, seqToID, err := e.buildSubmissionGrp(sub, submissionSeq)
		if err != nil {
			return nil, err
		}
		doc.Submissions = append(doc.Submissions, grp)
		recordMap[submissionSeq] = seqToID
		if grp.Header.CFSFElectionInd == "1" {
			cfsfElected = true
		}
		for _, rec := range sub.Records {
			if !filerSet[rec.FilerID] {
				filerSet[rec.FilerID] = true
				filers = append(filers, rec.FilerID)
			}
		}
	}

	payload, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return nil, &domain.EncodeError{Msg: fmt.Sprintf("marshal transmission: %v", err)}
	}
	payload = append([]byte(xml.Header), payload...)

	return &domain.Transmission{
		UTID:            utid,
		Type:            txType,
		Environment:     in.Environment,
		TaxYear:         in.TaxYear,
		Payload:         payload,
		RecordMap:       recordMap,
		Filers:          filers,
		CFSFElection:    cfsfElected,
		SubmissionCount: len(in.Submissions),
		RecordCount:     totalRecords,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// GenerateUTID builds the unique transmission identifier:
// {uuid}:IRIS:{TCC}::{T|P}. The TCC segment must match the manifest's
// transmitter control code or the authority rejects the transmission.
func GenerateUTID(tcc string, env domain.Environment) string {
	code := clip(strings.ToUpper(tcc), 5)
	if code == "" {
		code = "XXXXX"
	}
	return fmt.Sprintf("%s:IRIS:%s%s", uuid.NewString(), code, env.UTIDSuffix())
}

// classifyBatch determines the transmission type and total record count,
// rejecting empty batches and batches that mix originals with corrections.
func classifyBatch(subs []domain.Submission) (domain.TransmissionType, int, error) {
	total := 0
	hasOriginal, hasCorrection := false, false
	for _, sub := range subs {
		total += len(sub.Records)
		for _, rec := range sub.Records {
			if rec.Corrected {
				hasCorrection = true
			} else {
				hasOriginal = true
			}
		}
	}
	if total == 0 {
		return "", 0, domain.ErrEmptyBatch
	}
	if hasOriginal && hasCorrection {
		return "", 0, domain.ErrMixedBatch
	}
	if hasCorrection {
		return domain.TransmissionCorrection, total, nil
	}
	return domain.TransmissionOriginal, total, nil
}

func (e *Encoder) buildSubmissionGrp(sub domain.Submission, submissionSeq int) (submissionGrp, map[int]string, error) {
	formType, err := submissionFormType(sub)
	if err != nil {
		return submissionGrp{}, nil, err
	}

	issuer, err := e.encodeIssuer(sub.Issuer)
	if err != nil {
		return submissionGrp{}, nil, err
	}

	cfsf := false
	for _, rec := range sub.Records {
		if len(rec.CFSFStates) > 0 {
			cfsf = true
			break
		}
	}

	header := submissionHeader{
		SubmissionID:              strconv.Itoa(submissionSeq),
		TaxYr:                     sub.TaxYear,
		Issuer:                    issuer,
		Contact:                   issuerContact(sub.Issuer),
		FormTypeCd:                string(formType),
		ParentFormTypeCd:          "1096",
		CFSFElectionInd:           indicator(cfsf),
		Jurat:                     juratGroup(sub),
		TotalReportedRcpntFormCnt: len(sub.Records),
		FormTotals:                e.submissionTotals(formType, sub.Records),
	}

	detail := &submissionDetail{}
	seqToID := make(map[int]string, len(sub.Records))
	for i, rec := range sub.Records {
		recordSeq := i + 1
		seqToID[recordSeq] = rec.ID
		switch formType {
		case domain.Form1099NEC:
			d, err := e.encodeNEC(rec, recordSeq)
			if err != nil {
				return submissionGrp{}, nil, err
			}
			detail.NEC = append(detail.NEC, d)
		case domain.Form1099MISC:
			d, err := e.encodeMISC(rec, recordSeq)
			if err != nil {
				return submissionGrp{}, nil, err
			}
			detail.MISC = append(detail.MISC, d)
		case domain.Form1099S:
			d, err := e.encodeRealEstate(rec, recordSeq)
			if err != nil {
				return submissionGrp{}, nil, err
			}
			detail.S = append(detail.S, d)
		case domain.Form1098:
			d, err := e.encodeMortgage(rec, recordSeq)
			if err != nil {
				return submissionGrp{}, nil, err
			}
			detail.Mortgage = append(detail.Mortgage, d)
		}
	}

	return submissionGrp{Header: header, Detail: detail}, seqToID, nil
}

func submissionFormType(sub domain.Submission) (domain.FormType, error) {
	if len(sub.Records) == 0 {
		return "", domain.ErrEmptyBatch
	}
	formType := sub.Records[0].Boxes.Form()
	for _, rec := range sub.Records[1:] {
		if rec.Boxes.Form() != formType {
			return "", &domain.EncodeError{
				RecordID: rec.ID,
				Msg:      fmt.Sprintf("submission mixes form types %s and %s", formType, rec.Boxes.Form()),
			}
		}
	}
	return formType, nil
}

func issuerContact(iss domain.Issuer) *contactPersonGrp {
	if iss.ContactName == "" && iss.ContactEmail == "" {
		return nil
	}
	return &contactPersonGrp{
		ContactPersonNm:        clip(iss.ContactName, 35),
		ContactPhoneNum:        formatPhone(iss.Phone),
		ContactEmailAddressTxt: clip(iss.ContactEmail, 50),
	}
}

func juratGroup(sub domain.Submission) *juratSignatureGrp {
	if sub.SignaturePIN == "" {
		return nil
	}
	signedAt := time.Now().UTC()
	if sub.SignatureDate != nil {
		signedAt = *sub.SignatureDate
	}
	return &juratSignatureGrp{
		SignatureIntentInd: "1",
		JuratSignaturePIN:  clip(sub.SignaturePIN, 5),
		SignatureDt:        signedAt.Format(dateLayout),
		JuratPersonTitle:   clip(sub.SignatureTitle, 35),
		PersonNm:           clip(sub.SignerName, 35),
	}
}

type stateAccumulator struct {
	count         int
	fedWithheld   decimal.Decimal
	stateWithheld decimal.Decimal
	primary       decimal.Decimal // compensation for NEC
	rents         decimal.Decimal
	royalties     decimal.Decimal
	otherIncome   decimal.Decimal
}

func (e *Encoder) submissionTotals(formType domain.FormType, records []domain.ReturnRecord) formTotals {
	switch formType {
	case domain.Form1099NEC:
		return necTotals(records)
	case domain.Form1099MISC:
		return miscTotals(records)
	case domain.Form1099S:
		return realEstateTotals(records)
	case domain.Form1098:
		return mortgageTotals(records)
	}
	return formTotals{}
}

func necTotals(records []domain.ReturnRecord) formTotals {
	var comp, fed decimal.Decimal
	byState := map[string]*stateAccumulator{}
	var stateOrder []string
	for _, rec := range records {
		boxes := rec.Boxes.(domain.NECBoxes)
		comp = comp.Add(boxes.NonemployeeCompensation)
		fed = fed.Add(boxes.FederalTaxWithheld)
		for _, st := range rec.StateWithholding {
			acc, ok := byState[st.StateCode]
			if !ok {
				acc = &stateAccumulator{}
				byState[st.StateCode] = acc
				stateOrder = append(stateOrder, st.StateCode)
			}
			acc.count++
			acc.fedWithheld = acc.fedWithheld.Add(boxes.FederalTaxWithheld)
			acc.stateWithheld = acc.stateWithheld.Add(st.Withheld)
			acc.primary = acc.primary.Add(boxes.NonemployeeCompensation)
		}
	}
	totals := formTotals{NEC: &necTotalAmtGrp{
		FederalIncomeTaxWithheldAmt: positiveAmount(fed),
		NonemployeeCompensationAmt:  positiveAmount(comp),
	}}
	for _, code := range stateOrder {
		acc := byState[code]
		totals.NECByState = append(totals.NECByState, necTotalByStateGrp{
			StateAbbreviationCd:         code,
			TotalReportedRcpntFormCnt:   acc.count,
			FederalIncomeTaxWithheldAmt: amount(acc.fedWithheld),
			StateTaxWithheldAmt:         amount(acc.stateWithheld),
			LocalTaxWithheldAmt:         amount(decimal.Zero),
			NonemployeeCompensationAmt:  amount(acc.primary),
		})
	}
	return totals
}

func miscTotals(records []domain.ReturnRecord) formTotals {
	var fed, rents, royalties, other, fishing, medical decimal.Decimal
	byState := map[string]*stateAccumulator{}
	var stateOrder []string
	for _, rec := range records {
		boxes := rec.Boxes.(domain.MISCBoxes)
		fed = fed.Add(boxes.FederalTaxWithheld)
		rents = rents.Add(boxes.Rents)
		royalties = royalties.Add(boxes.Royalties)
		other = other.Add(boxes.OtherIncome)
		fishing = fishing.Add(boxes.FishingBoatProceeds)
		medical = medical.Add(boxes.MedicalPayments)
		for _, st := range rec.StateWithholding {
			acc, ok := byState[st.StateCode]
			if !ok {
				acc = &stateAccumulator{}
				byState[st.StateCode] = acc
				stateOrder = append(stateOrder, st.StateCode)
			}
			acc.count++
			acc.fedWithheld = acc.fedWithheld.Add(boxes.FederalTaxWithheld)
			acc.stateWithheld = acc.stateWithheld.Add(st.Withheld)
			acc.rents = acc.rents.Add(boxes.Rents)
			acc.royalties = acc.royalties.Add(boxes.Royalties)
			acc.otherIncome = acc.otherIncome.Add(boxes.OtherIncome)
		}
	}
	totals := formTotals{MISC: &miscTotalAmtGrp{
		FederalIncomeTaxWithheldAmt: positiveAmount(fed),
		RentAmt:                     positiveAmount(rents),
		RoyaltyAmt:                  positiveAmount(royalties),
		OtherIncomeAmt:              positiveAmount(other),
		FishingBoatProceedsAmt:      positiveAmount(fishing),
		MedicalHealthCarePaymentAmt: positiveAmount(medical),
	}}
	for _, code := range stateOrder {
		acc := byState[code]
		totals.MISCByState = append(totals.MISCByState, miscTotalByStateGrp{
			StateAbbreviationCd:         code,
			TotalReportedRcpntFormCnt:   acc.count,
			FederalIncomeTaxWithheldAmt: amount(acc.fedWithheld),
			StateTaxWithheldAmt:         amount(acc.stateWithheld),
			LocalTaxWithheldAmt:         amount(decimal.Zero),
			RentAmt:                     amount(acc.rents),
			RoyaltyAmt:                  amount(acc.royalties),
			OtherIncomeAmt:              amount(acc.otherIncome),
		})
	}
	return totals
}

func realEstateTotals(records []domain.ReturnRecord) formTotals {
	var proceeds, reTax decimal.Decimal
	for _, rec := range records {
		boxes := rec.Boxes.(domain.RealEstateBoxes)
		proceeds = proceeds.Add(boxes.GrossProceeds)
		reTax = reTax.Add(boxes.BuyersRealEstateTax)
	}
	return formTotals{S: &sTotalAmtGrp{
		GrossProceedsAmt:      positiveAmount(proceeds),
		BuyerRealEstateTaxAmt: positiveAmount(reTax),
	}}
}

func mortgageTotals(records []domain.ReturnRecord) formTotals {
	var interest, principal, refund, insurance, points decimal.Decimal
	for _, rec := range records {
		boxes := rec.Boxes.(domain.MortgageBoxes)
		interest = interest.Add(boxes.InterestReceived)
		principal = principal.Add(boxes.OutstandingPrincipal)
		refund = refund.Add(boxes.OverpaidInterestRefund)
		insurance = insurance.Add(boxes.InsurancePremiums)
		points = points.Add(boxes.PointsPaid)
	}
	return formTotals{Mortgage: &mortgageTotalAmtGrp{
		MortgageInterestReceivedAmt:  positiveAmount(interest),
		OutstandingMortgPrincipalAmt: positiveAmount(principal),
		OverpaidInterestRefundAmt:    positiveAmount(refund),
		MortgageInsurancePremiumsAmt: positiveAmount(insurance),
		PrinResPurchasePointsPaidAmt: positiveAmount(points),
	}}
}
