package encoder

import "encoding/xml"

// Wire structs for the authority intake schema. Field order matters: the
// schema validates element sequence, so struct fields follow the schema's
// declared order.

type irTransmission struct {
	XMLName        xml.Name        `xml:"IRTransmission"`
	Xmlns          string          `xml:"xmlns,attr"`
	XmlnsXsi       string          `xml:"xmlns:xsi,attr"`
	SchemaLocation string          `xml:"xsi:schemaLocation,attr"`
	Manifest       manifest        `xml:"IRTransmissionManifest"`
	Submissions    []submissionGrp `xml:"IRSubmission1Grp"`
}

type manifest struct {
	SchemaVersionNum      string         `xml:"SchemaVersionNum"`
	UniqueTransmissionID  string         `xml:"UniqueTransmissionId"`
	TaxYr                 int            `xml:"TaxYr"`
	PriorYearDataInd      string         `xml:"PriorYearDataInd"`
	TransmissionTypeCd    string         `xml:"TransmissionTypeCd"`
	TestCd                string         `xml:"TestCd"`
	Transmitter           transmitterGrp `xml:"TransmitterGrp"`
	VendorCd              string         `xml:"VendorCd"`
	SoftwareID            string         `xml:"SoftwareId"`
	TotalIssuerFormCnt    int            `xml:"TotalIssuerFormCnt"`
	TotalRecipientFormCnt int            `xml:"TotalRecipientFormCnt"`
	PaperSubmissionInd    string         `xml:"PaperSubmissionInd"`
	MediaSourceCd         string         `xml:"MediaSourceCd"`
	SubmissionChannelCd   string         `xml:"SubmissionChannelCd"`
}

type transmitterGrp struct {
	TIN                    string         `xml:"TIN"`
	TINSubmittedTypeCd     string         `xml:"TINSubmittedTypeCd"`
	TransmitterControlCd   string         `xml:"TransmitterControlCd"`
	ForeignEntityInd       string         `xml:"ForeignEntityInd"`
	PersonNm               string         `xml:"PersonNm,omitempty"`
	Company                companyGrp     `xml:"CompanyGrp"`
	Contact                contactNameGrp `xml:"ContactNameGrp"`
	ContactEmailAddressTxt string         `xml:"ContactEmailAddressTxt,omitempty"`
	ContactPhoneNum        string         `xml:"ContactPhoneNum,omitempty"`
}

type companyGrp struct {
	BusinessName businessName      `xml:"BusinessName"`
	Mailing      mailingAddressGrp `xml:"MailingAddressGrp"`
}

type businessName struct {
	Line1 string `xml:"BusinessNameLine1Txt"`
	Line2 string `xml:"BusinessNameLine2Txt,omitempty"`
}

type personName struct {
	First  string `xml:"PersonFirstNm,omitempty"`
	Middle string `xml:"PersonMiddleNm,omitempty"`
	Last   string `xml:"PersonLastNm,omitempty"`
	Suffix string `xml:"SuffixNm,omitempty"`
}

type contactNameGrp struct {
	PersonNm string `xml:"PersonNm"`
}

type mailingAddressGrp struct {
	US usAddress `xml:"USAddress"`
}

type usAddress struct {
	AddressLine1Txt     string `xml:"AddressLine1Txt"`
	AddressLine2Txt     string `xml:"AddressLine2Txt,omitempty"`
	CityNm              string `xml:"CityNm"`
	StateAbbreviationCd string `xml:"StateAbbreviationCd"`
	ZIPCd               string `xml:"ZIPCd"`
}

type issuerDetail struct {
	ForeignEntityInd       string            `xml:"ForeignEntityInd"`
	TIN                    string            `xml:"TIN"`
	TINSubmittedTypeCd     string            `xml:"TINSubmittedTypeCd"`
	BusinessNameControlTxt string            `xml:"BusinessNameControlTxt,omitempty"`
	BusinessName           *businessName     `xml:"BusinessName,omitempty"`
	PersonNameControlTxt   string            `xml:"PersonNameControlTxt,omitempty"`
	PersonName             *personName       `xml:"PersonName,omitempty"`
	Mailing                mailingAddressGrp `xml:"MailingAddressGrp"`
	PhoneNum               string            `xml:"PhoneNum,omitempty"`
}

type recipientDetail struct {
	TIN                    string            `xml:"TIN"`
	TINSubmittedTypeCd     string            `xml:"TINSubmittedTypeCd"`
	BusinessNameControlTxt string            `xml:"BusinessNameControlTxt,omitempty"`
	BusinessName           *businessName     `xml:"BusinessName,omitempty"`
	PersonNameControlTxt   string            `xml:"PersonNameControlTxt,omitempty"`
	PersonName             *personName       `xml:"PersonName,omitempty"`
	Mailing                mailingAddressGrp `xml:"MailingAddressGrp"`
}

type prevSubmittedRecGrp struct {
	UniqueRecordID string `xml:"UniqueRecordId"`
}

type stateLocalTaxGrp struct {
	StateAbbreviationCd string      `xml:"StateAbbreviationCd"`
	StateTax            stateTaxGrp `xml:"StateTaxGrp"`
}

type stateTaxGrp struct {
	StateIDNum           string `xml:"StateIdNum,omitempty"`
	StateTaxWithheldAmt  string `xml:"StateTaxWithheldAmt"`
	StateIncomeAmt       string `xml:"StateIncomeAmt"`
	StateDistributionAmt string `xml:"StateDistributionAmt"`
}

type form1099NECDetail struct {
	TaxYr                       int                  `xml:"TaxYr"`
	RecordID                    string               `xml:"RecordId"`
	CFSFElectionStateCd         []string             `xml:"CFSFElectionStateCd,omitempty"`
	VoidInd                     string               `xml:"VoidInd"`
	CorrectedInd                string               `xml:"CorrectedInd"`
	PrevSubmittedRec            *prevSubmittedRecGrp `xml:"PrevSubmittedRecRecipientGrp,omitempty"`
	Recipient                   recipientDetail      `xml:"RecipientDetail"`
	RecipientAccountNum         string               `xml:"RecipientAccountNum,omitempty"`
	SecondTINNoticeInd          string               `xml:"SecondTINNoticeInd"`
	NonemployeeCompensationAmt  string               `xml:"NonemployeeCompensationAmt,omitempty"`
	DirectSaleAboveThresholdInd string               `xml:"DirectSaleAboveThresholdInd"`
	FederalIncomeTaxWithheldAmt string               `xml:"FederalIncomeTaxWithheldAmt,omitempty"`
	StateLocalTax               []stateLocalTaxGrp   `xml:"StateLocalTaxGrp,omitempty"`
}

type form1099MISCDetail struct {
	TaxYr                           int                  `xml:"TaxYr"`
	RecordID                        string               `xml:"RecordId"`
	CFSFElectionStateCd             []string             `xml:"CFSFElectionStateCd,omitempty"`
	VoidInd                         string               `xml:"VoidInd"`
	CorrectedInd                    string               `xml:"CorrectedInd"`
	PrevSubmittedRec                *prevSubmittedRecGrp `xml:"PrevSubmittedRecRecipientGrp,omitempty"`
	Recipient                       recipientDetail      `xml:"RecipientDetail"`
	RecipientAccountNum             string               `xml:"RecipientAccountNum,omitempty"`
	SecondTINNoticeInd              string               `xml:"SecondTINNoticeInd"`
	FATCAFilingRequirementInd       string               `xml:"FATCAFilingRequirementInd"`
	RentAmt                         string               `xml:"RentAmt,omitempty"`
	RoyaltyAmt                      string               `xml:"RoyaltyAmt,omitempty"`
	OtherIncomeAmt                  string               `xml:"OtherIncomeAmt,omitempty"`
	FederalIncomeTaxWithheldAmt     string               `xml:"FederalIncomeTaxWithheldAmt,omitempty"`
	FishingBoatProceedsAmt          string               `xml:"FishingBoatProceedsAmt,omitempty"`
	MedicalHealthCarePaymentAmt     string               `xml:"MedicalHealthCarePaymentAmt,omitempty"`
	DirectSaleAboveThresholdInd     string               `xml:"DirectSaleAboveThresholdInd"`
	SubstitutePaymentAmt            string               `xml:"SubstitutePaymentAmt,omitempty"`
	CropInsuranceProceedAmt         string               `xml:"CropInsuranceProceedAmt,omitempty"`
	GrossProceedsPaidToAttorneyAmt  string               `xml:"GrossProceedsPaidToAttorneyAmt,omitempty"`
	FishPurchasedForResaleAmt       string               `xml:"FishPurchasedForResaleAmt,omitempty"`
	Section409ADeferralAmt          string               `xml:"Section409ADeferralAmt,omitempty"`
	NonqualifiedDeferredCompAmt     string               `xml:"NonqualifiedDeferredCompensationAmt,omitempty"`
	StateLocalTax                   []stateLocalTaxGrp   `xml:"StateLocalTaxGrp,omitempty"`
}

type form1099SDetail struct {
	TaxYr                          int                  `xml:"TaxYr"`
	RecordID                       string               `xml:"RecordId"`
	VoidInd                        string               `xml:"VoidInd"`
	CorrectedInd                   string               `xml:"CorrectedInd"`
	PrevSubmittedRec               *prevSubmittedRecGrp `xml:"PrevSubmittedRecRecipientGrp,omitempty"`
	Recipient                      recipientDetail      `xml:"RecipientDetail"`
	RecipientAccountNum            string               `xml:"RecipientAccountNum,omitempty"`
	ClosingDt                      string               `xml:"ClosingDt,omitempty"`
	GrossProceedsAmt               string               `xml:"GrossProceedsAmt,omitempty"`
	AddressOrLegalDescTxt          string               `xml:"AddressOrLegalDescTxt,omitempty"`
	TransferorRcvdConsiderationInd string               `xml:"TransferorRcvdConsiderationInd"`
	TransferorForeignPersonInd     string               `xml:"TransferorForeignPersonInd"`
	BuyerRealEstateTaxAmt          string               `xml:"BuyerRealEstateTaxAmt,omitempty"`
}

type propertyAddressGrp struct {
	PropertyDesc string `xml:"PropertyDesc"`
}

type form1098Detail struct {
	TaxYr                         int                  `xml:"TaxYr"`
	RecordID                      string               `xml:"RecordId"`
	VoidInd                       string               `xml:"VoidInd"`
	CorrectedInd                  string               `xml:"CorrectedInd"`
	PrevSubmittedRec              *prevSubmittedRecGrp `xml:"PrevSubmittedRecRecipientGrp,omitempty"`
	Recipient                     recipientDetail      `xml:"RecipientDetail"`
	RecipientAccountNum           string               `xml:"RecipientAccountNum,omitempty"`
	MortgageInterestReceivedAmt   string               `xml:"MortgageInterestReceivedAmt,omitempty"`
	OutstandingMortgPrincipalAmt  string               `xml:"OutstandingMortgPrincipalAmt,omitempty"`
	MortgageOriginationDt         string               `xml:"MortgageOriginationDt,omitempty"`
	OverpaidInterestRefundAmt     string               `xml:"OverpaidInterestRefundAmt,omitempty"`
	MortgageInsurancePremiumsAmt  string               `xml:"MortgageInsurancePremiumsAmt,omitempty"`
	PrinResPurchasePointsPaidAmt  string               `xml:"PrinResPurchasePointsPaidAmt,omitempty"`
	PropAddrSameBorrowerAddrInd   string               `xml:"PropAddrSameBorrowerAddrInd"`
	PropertyAddress               *propertyAddressGrp  `xml:"PropertyAddressGrp,omitempty"`
	PropertiesSecuringMortgageCnt string               `xml:"PropertiesSecuringMortgageCnt,omitempty"`
	OtherTxt                      string               `xml:"OtherTxt,omitempty"`
	MortgageAcquisitionDt         string               `xml:"MortgageAcquisitionDt,omitempty"`
}

type necTotalAmtGrp struct {
	FederalIncomeTaxWithheldAmt string `xml:"FederalIncomeTaxWithheldAmt,omitempty"`
	NonemployeeCompensationAmt  string `xml:"NonemployeeCompensationAmt,omitempty"`
}

type necTotalByStateGrp struct {
	StateAbbreviationCd         string `xml:"StateAbbreviationCd"`
	TotalReportedRcpntFormCnt   int    `xml:"TotalReportedRcpntFormCnt"`
	FederalIncomeTaxWithheldAmt string `xml:"FederalIncomeTaxWithheldAmt"`
	StateTaxWithheldAmt         string `xml:"StateTaxWithheldAmt"`
	LocalTaxWithheldAmt         string `xml:"LocalTaxWithheldAmt"`
	NonemployeeCompensationAmt  string `xml:"NonemployeeCompensationAmt"`
}

type miscTotalAmtGrp struct {
	FederalIncomeTaxWithheldAmt string `xml:"FederalIncomeTaxWithheldAmt,omitempty"`
	RentAmt                     string `xml:"RentAmt,omitempty"`
	RoyaltyAmt                  string `xml:"RoyaltyAmt,omitempty"`
	OtherIncomeAmt              string `xml:"OtherIncomeAmt,omitempty"`
	FishingBoatProceedsAmt      string `xml:"FishingBoatProceedsAmt,omitempty"`
	MedicalHealthCarePaymentAmt string `xml:"MedicalHealthCarePaymentAmt,omitempty"`
}

type miscTotalByStateGrp struct {
	StateAbbreviationCd         string `xml:"StateAbbreviationCd"`
	TotalReportedRcpntFormCnt   int    `xml:"TotalReportedRcpntFormCnt"`
	FederalIncomeTaxWithheldAmt string `xml:"FederalIncomeTaxWithheldAmt"`
	StateTaxWithheldAmt         string `xml:"StateTaxWithheldAmt"`
	LocalTaxWithheldAmt         string `xml:"LocalTaxWithheldAmt"`
	RentAmt                     string `xml:"RentAmt"`
	RoyaltyAmt                  string `xml:"RoyaltyAmt"`
	OtherIncomeAmt              string `xml:"OtherIncomeAmt"`
}

type sTotalAmtGrp struct {
	GrossProceedsAmt      string `xml:"GrossProceedsAmt,omitempty"`
	BuyerRealEstateTaxAmt string `xml:"BuyerRealEstateTaxAmt,omitempty"`
}

type mortgageTotalAmtGrp struct {
	MortgageInterestReceivedAmt  string `xml:"MortgageInterestReceivedAmt,omitempty"`
	OutstandingMortgPrincipalAmt string `xml:"OutstandingMortgPrincipalAmt,omitempty"`
	OverpaidInterestRefundAmt    string `xml:"OverpaidInterestRefundAmt,omitempty"`
	MortgageInsurancePremiumsAmt string `xml:"MortgageInsurancePremiumsAmt,omitempty"`
	PrinResPurchasePointsPaidAmt string `xml:"PrinResPurchasePointsPaidAmt,omitempty"`
}

type formTotals struct {
	NEC         *necTotalAmtGrp       `xml:"Form1099NECTotalAmtGrp,omitempty"`
	NECByState  []necTotalByStateGrp  `xml:"Form1099NECTotalByStateGrp,omitempty"`
	MISC        *miscTotalAmtGrp      `xml:"Form1099MISCTotalAmtGrp,omitempty"`
	MISCByState []miscTotalByStateGrp `xml:"Form1099MISCTotalByStateGrp,omitempty"`
	S           *sTotalAmtGrp         `xml:"Form1099STotalAmtGrp,omitempty"`
	Mortgage    *mortgageTotalAmtGrp  `xml:"Form1098TotalAmtGrp,omitempty"`
}

type contactPersonGrp struct {
	ContactPersonNm        string `xml:"ContactPersonNm,omitempty"`
	ContactPhoneNum        string `xml:"ContactPhoneNum,omitempty"`
	ContactEmailAddressTxt string `xml:"ContactEmailAddressTxt,omitempty"`
}

type juratSignatureGrp struct {
	SignatureIntentInd string `xml:"SignatureIntentInd"`
	JuratSignaturePIN  string `xml:"JuratSignaturePIN"`
	SignatureDt        string `xml:"SignatureDt"`
	JuratPersonTitle   string `xml:"JuratPersonTitleTxt,omitempty"`
	PersonNm           string `xml:"PersonNm,omitempty"`
}

type submissionHeader struct {
	SubmissionID              string            `xml:"SubmissionId"`
	TaxYr                     int               `xml:"TaxYr"`
	Issuer                    issuerDetail      `xml:"IssuerDetail"`
	Contact                   *contactPersonGrp `xml:"ContactPersonInformationGrp,omitempty"`
	FormTypeCd                string            `xml:"FormTypeCd"`
	ParentFormTypeCd          string            `xml:"ParentFormTypeCd"`
	CFSFElectionInd           string            `xml:"CFSFElectionInd"`
	Jurat                     *juratSignatureGrp `xml:"JuratSignatureGrp,omitempty"`
	TotalReportedRcpntFormCnt int               `xml:"TotalReportedRcpntFormCnt"`
	FormTotals                formTotals        `xml:"IRSubmission1FormTotals"`
}

type submissionDetail struct {
	NEC      []form1099NECDetail  `xml:"Form1099NECDetail,omitempty"`
	MISC     []form1099MISCDetail `xml:"Form1099MISCDetail,omitempty"`
	S        []form1099SDetail    `xml:"Form1099SDetail,omitempty"`
	Mortgage []form1098Detail     `xml:"Form1098Detail,omitempty"`
}

type submissionGrp struct {
	Header submissionHeader  `xml:"IRSubmission1Header"`
	Detail *submissionDetail `xml:"IRSubmission1Detail,omitempty"`
}
