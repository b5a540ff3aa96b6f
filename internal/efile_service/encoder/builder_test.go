package encoder

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
	"github.com/sherpatax/golang_services/internal/efile_service/schema"
)

func newTestEncoder(t *testing.T) (*Encoder, *fieldcrypt.Keeper) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	keeper, err := fieldcrypt.NewKeeper(map[int][]byte{1: key}, 1)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(schema.Default(), keeper, logger), keeper
}

func encryptTIN(t *testing.T, keeper *fieldcrypt.Keeper, tin string) domain.EncryptedTIN {
	t.Helper()
	enc, err := keeper.Encrypt(tin)
	require.NoError(t, err)
	return enc
}

func testTransmitter(t *testing.T, keeper *fieldcrypt.Keeper) domain.Transmitter {
	return domain.Transmitter{
		TIN:          encryptTIN(t, keeper, "11-1111111"),
		TINType:      domain.TINTypeEIN,
		TCC:          "ABCDE",
		CompanyName:  "Sherpa Tax Software Inc",
		ContactName:  "Pat Operator",
		ContactEmail: "ops@sherpatax.example",
		ContactPhone: "(415) 555-0100",
		Address: domain.Address{
			Line1: "500 Market St",
			City:  "San Francisco",
			State: "CA",
			ZIP:   "94105",
		},
	}
}

func testIssuer(t *testing.T, keeper *fieldcrypt.Keeper) domain.Issuer {
	return domain.Issuer{
		TIN:          encryptTIN(t, keeper, "22-2222222"),
		TINType:      domain.TINTypeEIN,
		BusinessName: "Acme Payers LLC",
		Address: domain.Address{
			Line1: "1 Payer Way",
			City:  "Austin",
			State: "TX",
			ZIP:   "78701",
		},
		Phone:        "5125550142",
		ContactName:  "Dana Books",
		ContactEmail: "ap@acme.example",
	}
}

func necRecord(t *testing.T, keeper *fieldcrypt.Keeper, id, filerID string) domain.ReturnRecord {
	return domain.ReturnRecord{
		ID:      id,
		FilerID: filerID,
		TaxYear: 2025,
		Recipient: domain.Recipient{
			FirstName: "Jordan",
			LastName:  "Rivera",
			TIN:       encryptTIN(t, keeper, "123-45-6789"),
			TINType:   domain.TINTypeSSN,
			Address: domain.Address{
				Line1: "77 Elm St",
				City:  "Denver",
				State: "CO",
				ZIP:   "80202",
			},
			AccountNumber: "ACCT-001",
		},
		Boxes: domain.NECBoxes{
			NonemployeeCompensation: decimal.NewFromFloat(12500.5),
			FederalTaxWithheld:      decimal.NewFromInt(300),
		},
	}
}

func buildInput(t *testing.T, keeper *fieldcrypt.Keeper, subs ...domain.Submission) BuildInput {
	return BuildInput{
		Transmitter: testTransmitter(t, keeper),
		Submissions: subs,
		TaxYear:     2025,
		Environment: domain.EnvironmentTest,
		SoftwareID:  "25SW00001",
	}
}

func TestBuildTransmission_Original(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	sub := domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{
			necRecord(t, keeper, "rec-a", "filer-1"),
			necRecord(t, keeper, "rec-b", "filer-1"),
			necRecord(t, keeper, "rec-c", "filer-2"),
		},
		SignaturePIN:   "12345",
		SignatureTitle: "Controller",
		SignerName:     "Dana Books",
	}

	tx, err := enc.BuildTransmission(buildInput(t, keeper, sub))
	require.NoError(t, err)

	assert.Equal(t, domain.TransmissionOriginal, tx.Type)
	assert.Equal(t, domain.EnvironmentTest, tx.Environment)
	assert.Equal(t, 2025, tx.TaxYear)
	assert.Equal(t, 1, tx.SubmissionCount)
	assert.Equal(t, 3, tx.RecordCount)
	assert.Equal(t, []string{"filer-1", "filer-2"}, tx.Filers)
	assert.False(t, tx.CFSFElection)

	// Record sequences are 1-based and contiguous within the submission.
	require.Contains(t, tx.RecordMap, 1)
	assert.Equal(t, map[int]string{1: "rec-a", 2: "rec-b", 3: "rec-c"}, tx.RecordMap[1])

	utidPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}:IRIS:ABCDE::T$`)
	assert.Regexp(t, utidPattern, tx.UTID)

	payload := string(tx.Payload)
	assert.True(t, strings.HasPrefix(payload, "<?xml"))
	assert.Contains(t, payload, "<TestCd>T</TestCd>")
	assert.Contains(t, payload, "<TransmissionTypeCd>O</TransmissionTypeCd>")
	assert.Contains(t, payload, "<SchemaVersionNum>2.0.3</SchemaVersionNum>")
	assert.Contains(t, payload, "<TotalIssuerFormCnt>1</TotalIssuerFormCnt>")
	assert.Contains(t, payload, "<TotalRecipientFormCnt>3</TotalRecipientFormCnt>")
	assert.Contains(t, payload, "<SubmissionChannelCd>A2A</SubmissionChannelCd>")
	assert.Contains(t, payload, "<RecordId>1</RecordId>")
	assert.Contains(t, payload, "<RecordId>2</RecordId>")
	assert.Contains(t, payload, "<RecordId>3</RecordId>")
	assert.Contains(t, payload, "<NonemployeeCompensationAmt>12500.50</NonemployeeCompensationAmt>")
	assert.Contains(t, payload, "<FederalIncomeTaxWithheldAmt>300.00</FederalIncomeTaxWithheldAmt>")
	assert.Contains(t, payload, "<TINSubmittedTypeCd>INDIVIDUAL_TIN</TINSubmittedTypeCd>")
	assert.Contains(t, payload, "<TINSubmittedTypeCd>BUSINESS_TIN</TINSubmittedTypeCd>")
	assert.Contains(t, payload, "<JuratSignaturePIN>12345</JuratSignaturePIN>")
	assert.Contains(t, payload, "<ParentFormTypeCd>1096</ParentFormTypeCd>")

	// Recipient TINs travel decrypted inside the payload and nowhere else.
	assert.Contains(t, payload, "<TIN>123456789</TIN>")
	assert.NotContains(t, payload, "PrevSubmittedRecRecipientGrp")
}

func TestBuildTransmission_ProductionUTIDAndTestCd(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	in := buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{necRecord(t, keeper, "rec-a", "filer-1")},
	})
	in.Environment = domain.EnvironmentProduction

	tx, err := enc.BuildTransmission(in)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(tx.UTID, ":IRIS:ABCDE::P"), tx.UTID)
	assert.Contains(t, string(tx.Payload), "<TestCd>P</TestCd>")
}

func TestBuildTransmission_Correction(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	rec := necRecord(t, keeper, "rec-corr", "filer-1")
	rec.Corrected = true
	rec.OriginalRef = &domain.RecordRef{
		ReceiptID:     "2025-68698468914-b0b2da138",
		SubmissionSeq: 1,
		RecordSeq:     1,
	}

	tx, err := enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{rec},
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.TransmissionCorrection, tx.Type)
	payload := string(tx.Payload)
	assert.Contains(t, payload, "<TransmissionTypeCd>C</TransmissionTypeCd>")
	assert.Contains(t, payload, "<CorrectedInd>1</CorrectedInd>")
	assert.Contains(t, payload, "<UniqueRecordId>2025-68698468914-b0b2da138|1|1</UniqueRecordId>")
}

func TestBuildTransmission_EmptyAndMixedBatches(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	_, err := enc.BuildTransmission(buildInput(t, keeper))
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	_, err = enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
		Issuer: testIssuer(t, keeper), TaxYear: 2025,
	}))
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	original := necRecord(t, keeper, "rec-a", "filer-1")
	correction := necRecord(t, keeper, "rec-b", "filer-1")
	correction.Corrected = true
	correction.OriginalRef = &domain.RecordRef{ReceiptID: "r", SubmissionSeq: 1, RecordSeq: 1}

	_, err = enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{original, correction},
	}))
	assert.ErrorIs(t, err, domain.ErrMixedBatch)
}

func TestBuildTransmission_RecordValidation(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	build := func(rec domain.ReturnRecord) error {
		_, err := enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
			Issuer:  testIssuer(t, keeper),
			TaxYear: 2025,
			Records: []domain.ReturnRecord{rec},
		}))
		return err
	}

	t.Run("missing boxes", func(t *testing.T) {
		rec := necRecord(t, keeper, "rec-a", "filer-1")
		rec.Boxes = nil
		var encErr *domain.EncodeError
		require.ErrorAs(t, build(rec), &encErr)
		assert.Equal(t, "rec-a", encErr.RecordID)
	})

	t.Run("too many state withholdings", func(t *testing.T) {
		rec := necRecord(t, keeper, "rec-a", "filer-1")
		rec.StateWithholding = []domain.StateWithholding{
			{StateCode: "CA"}, {StateCode: "CO"}, {StateCode: "AZ"},
		}
		var encErr *domain.EncodeError
		require.ErrorAs(t, build(rec), &encErr)
		assert.Equal(t, "StateWithholding", encErr.Field)
	})

	t.Run("correction without original reference", func(t *testing.T) {
		rec := necRecord(t, keeper, "rec-a", "filer-1")
		rec.Corrected = true
		var encErr *domain.EncodeError
		require.ErrorAs(t, build(rec), &encErr)
		assert.Equal(t, "OriginalRef", encErr.Field)
	})

	t.Run("cfsf ineligible form", func(t *testing.T) {
		rec := necRecord(t, keeper, "rec-a", "filer-1")
		rec.Boxes = domain.RealEstateBoxes{GrossProceeds: decimal.NewFromInt(100000)}
		rec.CFSFStates = []string{"CA"}
		var encErr *domain.EncodeError
		require.ErrorAs(t, build(rec), &encErr)
		assert.Equal(t, "CFSFStates", encErr.Field)
	})

	t.Run("cfsf nonparticipating state", func(t *testing.T) {
		rec := necRecord(t, keeper, "rec-a", "filer-1")
		rec.CFSFStates = []string{"NY"}
		var encErr *domain.EncodeError
		require.ErrorAs(t, build(rec), &encErr)
		assert.Equal(t, "CFSFStates", encErr.Field)
	})

	t.Run("mixed form types in one submission", func(t *testing.T) {
		nec := necRecord(t, keeper, "rec-a", "filer-1")
		misc := necRecord(t, keeper, "rec-b", "filer-1")
		misc.Boxes = domain.MISCBoxes{Rents: decimal.NewFromInt(1200)}
		_, err := enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
			Issuer:  testIssuer(t, keeper),
			TaxYear: 2025,
			Records: []domain.ReturnRecord{nec, misc},
		}))
		var encErr *domain.EncodeError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "rec-b", encErr.RecordID)
	})
}

func TestBuildTransmission_CFSFElectionAndStateTotals(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	rec := necRecord(t, keeper, "rec-a", "filer-1")
	rec.CFSFStates = []string{"CA"}
	rec.StateWithholding = []domain.StateWithholding{{
		StateCode:     "CA",
		StateIDNumber: "123-4567-8",
		Income:        decimal.NewFromInt(12500),
		Withheld:      decimal.NewFromInt(250),
	}}

	tx, err := enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{rec},
	}))
	require.NoError(t, err)

	assert.True(t, tx.CFSFElection)
	payload := string(tx.Payload)
	assert.Contains(t, payload, "<CFSFElectionInd>1</CFSFElectionInd>")
	assert.Contains(t, payload, "<CFSFElectionStateCd>CA</CFSFElectionStateCd>")
	assert.Contains(t, payload, "<StateTaxWithheldAmt>250.00</StateTaxWithheldAmt>")
	assert.Contains(t, payload, "<StateIncomeAmt>12500.00</StateIncomeAmt>")
	assert.Contains(t, payload, "<Form1099NECTotalByStateGrp>")
	assert.Contains(t, payload, "<TotalReportedRcpntFormCnt>1</TotalReportedRcpntFormCnt>")
}

func TestBuildTransmission_ZeroAmountsOmitted(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	rec := necRecord(t, keeper, "rec-a", "filer-1")
	rec.Boxes = domain.NECBoxes{NonemployeeCompensation: decimal.NewFromInt(900)}

	tx, err := enc.BuildTransmission(buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{rec},
	}))
	require.NoError(t, err)

	payload := string(tx.Payload)
	assert.Contains(t, payload, "<NonemployeeCompensationAmt>900.00</NonemployeeCompensationAmt>")
	assert.NotContains(t, payload, "<FederalIncomeTaxWithheldAmt>")
}

func TestBuildTransmission_MortgageAndRealEstateForms(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	closing := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sRec := necRecord(t, keeper, "rec-s", "filer-1")
	sRec.Boxes = domain.RealEstateBoxes{
		ClosingDate:         &closing,
		GrossProceeds:       decimal.NewFromInt(450000),
		PropertyDescription: "123 Main St, Denver CO",
	}

	origination := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	mRec := necRecord(t, keeper, "rec-m", "filer-2")
	mRec.Boxes = domain.MortgageBoxes{
		InterestReceived:     decimal.NewFromFloat(8123.45),
		OutstandingPrincipal: decimal.NewFromInt(250000),
		OriginationDate:      &origination,
		PropertiesCount:      1,
	}

	tx, err := enc.BuildTransmission(buildInput(t, keeper,
		domain.Submission{Issuer: testIssuer(t, keeper), TaxYear: 2025, Records: []domain.ReturnRecord{sRec}},
		domain.Submission{Issuer: testIssuer(t, keeper), TaxYear: 2025, Records: []domain.ReturnRecord{mRec}},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, tx.SubmissionCount)
	assert.Equal(t, map[int]string{1: "rec-s"}, tx.RecordMap[1])
	assert.Equal(t, map[int]string{1: "rec-m"}, tx.RecordMap[2])

	payload := string(tx.Payload)
	assert.Contains(t, payload, "<Form1099SDetail>")
	assert.Contains(t, payload, "<ClosingDt>2025-06-15</ClosingDt>")
	assert.Contains(t, payload, "<GrossProceedsAmt>450000.00</GrossProceedsAmt>")
	assert.Contains(t, payload, "<Form1098Detail>")
	assert.Contains(t, payload, "<MortgageOriginationDt>2020-03-01</MortgageOriginationDt>")
	assert.Contains(t, payload, "<MortgageInterestReceivedAmt>8123.45</MortgageInterestReceivedAmt>")
	assert.Contains(t, payload, "<PropertiesSecuringMortgageCnt>1</PropertiesSecuringMortgageCnt>")
	assert.Contains(t, payload, "<Form1099STotalAmtGrp>")
	assert.Contains(t, payload, "<Form1098TotalAmtGrp>")
}

func TestBuildTransmission_UTIDOverride(t *testing.T) {
	enc, keeper := newTestEncoder(t)

	in := buildInput(t, keeper, domain.Submission{
		Issuer:  testIssuer(t, keeper),
		TaxYear: 2025,
		Records: []domain.ReturnRecord{necRecord(t, keeper, "rec-a", "filer-1")},
	})
	in.UTID = "fixed-utid:IRIS:ABCDE::T"

	tx, err := enc.BuildTransmission(in)
	require.NoError(t, err)
	assert.Equal(t, "fixed-utid:IRIS:ABCDE::T", tx.UTID)
	assert.Contains(t, string(tx.Payload), "<UniqueTransmissionId>fixed-utid:IRIS:ABCDE::T</UniqueTransmissionId>")
}

func TestGenerateUTID(t *testing.T) {
	utid := GenerateUTID("abcde", domain.EnvironmentTest)
	assert.True(t, strings.HasSuffix(utid, ":IRIS:ABCDE::T"), utid)

	utid = GenerateUTID("", domain.EnvironmentProduction)
	assert.True(t, strings.HasSuffix(utid, ":IRIS:XXXXX::P"), utid)

	assert.NotEqual(t, GenerateUTID("ABCDE", domain.EnvironmentTest), GenerateUTID("ABCDE", domain.EnvironmentTest))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "4155550100", formatPhone("(415) 555-0100"))
	assert.Equal(t, "5125550142", formatPhone("512.555.0142 ext 12"))
	assert.Equal(t, "", formatPhone("555-0100"))
	assert.Equal(t, "", formatPhone(""))
}
