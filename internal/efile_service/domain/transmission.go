package domain

import "time"

// TransmissionType is the wire typing of a batch: originals or corrections,
// never mixed.
type TransmissionType string

const (
	TransmissionOriginal   TransmissionType = "O"
	TransmissionCorrection TransmissionType = "C"
)

// Environment selects which authority deployment a transmission targets.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// TestCd is the schema indicator for the environment: "T" for the test
// system, "P" for production.
func (e Environment) TestCd() string {
	if e == EnvironmentProduction {
		return "P"
	}
	return "T"
}

// UTIDSuffix is the environment tail of the unique transmission identifier.
func (e Environment) UTIDSuffix() string {
	return "::" + e.TestCd()
}

// Transmitter is the software vendor identity stamped on every transmission.
type Transmitter struct {
	TIN           EncryptedTIN
	TINType       TINType
	TCC           string
	CompanyName   string
	ContactName   string
	ContactEmail  string
	ContactPhone  string
	Address       Address
	SoftwareID    string
	ForeignEntity bool
}

// Issuer is the payer identity heading one submission group. All records in
// a submission share its issuer and tax year.
type Issuer struct {
	TIN           EncryptedTIN
	TINType       TINType
	BusinessName  string
	BusinessName2 string
	FirstName     string
	LastName      string
	Address       Address
	Phone         string
	ContactName   string
	ContactEmail  string
}

// Submission is one issuer's slice of a transmission. All records in a
// submission share the issuer, tax year, and form type.
type Submission struct {
	Issuer  Issuer
	TaxYear int
	Records []ReturnRecord

	// Optional jurat signature.
	SignaturePIN   string
	SignatureDate  *time.Time
	SignatureTitle string
	SignerName     string
}

// RecordSequenceMap remembers where each record landed in the wire payload:
// submission sequence -> record sequence -> ReturnRecord.ID. Both sequences
// are 1-based and contiguous.
type RecordSequenceMap map[int]map[int]string

// Transmission is a fully encoded batch ready for (or already sent over) the
// wire. Payload carries decrypted identifiers and lives in memory only, for
// the duration of the submit call; it is never written to storage. The
// sequence map is what later makes acknowledgment errors and corrections
// addressable.
type Transmission struct {
	UTID            string
	Type            TransmissionType
	Environment     Environment
	TaxYear         int
	Payload         []byte
	RecordMap       RecordSequenceMap
	Filers          []string
	CFSFElection    bool
	SubmissionCount int
	RecordCount     int
	CreatedAt       time.Time
}

// SubmissionReceipt is the authority's handle for an accepted-for-processing
// transmission.
type SubmissionReceipt struct {
	ReceiptID  string
	UTID       string
	ReceivedAt time.Time
}
