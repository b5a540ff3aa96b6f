package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FormType identifies which information return a record carries.
type FormType string

const (
	Form1099NEC  FormType = "1099NEC"
	Form1099MISC FormType = "1099MISC"
	Form1099S    FormType = "1099S"
	Form1098     FormType = "1098"
)

// TINType is the local, fine-grained taxpayer-identifier kind. The wire
// format uses a coarser vocabulary; see the schema package for the mapping.
type TINType string

const (
	TINTypeSSN  TINType = "SSN"
	TINTypeEIN  TINType = "EIN"
	TINTypeITIN TINType = "ITIN"
	TINTypeATIN TINType = "ATIN"
)

// FormBoxes is the per-form-type box set. Each variant carries only the boxes
// defined for its form; the encoder switches on the concrete type.
type FormBoxes interface {
	Form() FormType
}

// NECBoxes holds the 1099-NEC box values.
type NECBoxes struct {
	NonemployeeCompensation decimal.Decimal // box 1
	DirectSales             bool            // box 2
	FederalTaxWithheld      decimal.Decimal // box 4
}

func (NECBoxes) Form() FormType { return Form1099NEC }

// MISCBoxes holds the 1099-MISC box values.
type MISCBoxes struct {
	Rents                    decimal.Decimal // box 1
	Royalties                decimal.Decimal // box 2
	OtherIncome              decimal.Decimal // box 3
	FederalTaxWithheld       decimal.Decimal // box 4
	FishingBoatProceeds      decimal.Decimal // box 5
	MedicalPayments          decimal.Decimal // box 6
	DirectSales              bool            // box 7
	SubstitutePayments       decimal.Decimal // box 8
	CropInsuranceProceeds    decimal.Decimal // box 9
	AttorneyProceeds         decimal.Decimal // box 10
	FishPurchasedForResale   decimal.Decimal // box 11
	Section409ADeferrals     decimal.Decimal // box 12
	NonqualifiedDeferredComp decimal.Decimal // box 14
	FATCAFiling              bool
}

func (MISCBoxes) Form() FormType { return Form1099MISC }

// RealEstateBoxes holds the 1099-S box values.
type RealEstateBoxes struct {
	ClosingDate           *time.Time      // box 1
	GrossProceeds         decimal.Decimal // box 2
	PropertyDescription   string          // box 3
	ReceivedConsideration bool            // box 4
	ForeignTransferor     bool            // box 5
	BuyersRealEstateTax   decimal.Decimal // box 6
}

func (RealEstateBoxes) Form() FormType { return Form1099S }

// MortgageBoxes holds the 1098 box values.
type MortgageBoxes struct {
	InterestReceived       decimal.Decimal // box 1
	OutstandingPrincipal   decimal.Decimal // box 2
	OriginationDate        *time.Time      // box 3
	OverpaidInterestRefund decimal.Decimal // box 4
	InsurancePremiums      decimal.Decimal // box 5
	PointsPaid             decimal.Decimal // box 6
	PropertySameAsBorrower bool            // box 7
	PropertyDescription    string          // box 8
	PropertiesCount        int             // box 9
	OtherInfo              string          // box 10
	AcquisitionDate        *time.Time      // box 11
}

func (MortgageBoxes) Form() FormType { return Form1098 }

// EncryptedTIN is the at-rest representation of a taxpayer identifier.
// The ciphertext is only opened inside the record encoder; Last4 is the
// display fragment and Hash a key-independent digest for duplicate checks.
type EncryptedTIN struct {
	Ciphertext string
	Last4      string
	Hash       string
	KeyVersion int
}

// Address is a US mailing address as the authority schema shapes it.
type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	ZIP     string
	Country string
}

// Recipient is the payee on a single return record. Either the person name
// fields or BusinessName are set, keyed off TINType.
type Recipient struct {
	FirstName     string
	MiddleName    string
	LastName      string
	Suffix        string
	BusinessName  string
	BusinessName2 string
	TIN           EncryptedTIN
	TINType       TINType
	Address       Address
	AccountNumber string
}

// IsBusiness reports whether the recipient files under a business-style TIN.
func (r Recipient) IsBusiness() bool { return r.TINType == TINTypeEIN }

// StateWithholding is one jurisdiction withholding block. A record carries at
// most two.
type StateWithholding struct {
	StateCode     string
	StateIDNumber string
	Income        decimal.Decimal
	Withheld      decimal.Decimal
}

// RecordRef points at a record inside a previously accepted transmission.
// Corrections use it to rebuild the authority's unique record identifier.
type RecordRef struct {
	ReceiptID     string
	SubmissionSeq int
	RecordSeq     int
}

// UniqueRecordID renders the authority's composite identifier for a
// previously submitted record: {receiptId}|{submissionSeq}|{recordSeq}.
func (r RecordRef) UniqueRecordID() string {
	return fmt.Sprintf("%s|%d|%d", r.ReceiptID, r.SubmissionSeq, r.RecordSeq)
}

// ReturnRecord is one taxpayer/form-type/tax-year unit. Once submitted it is
// immutable; a correction is a new record whose OriginalRef links back to the
// accepted original.
type ReturnRecord struct {
	ID               string
	FilerID          string
	TaxYear          int
	Recipient        Recipient
	Boxes            FormBoxes
	StateWithholding []StateWithholding
	CFSFStates       []string
	Corrected        bool
	OriginalRef      *RecordRef
}
