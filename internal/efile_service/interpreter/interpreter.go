// Package interpreter reads the authority's response documents. Response
// shapes drift between deployments and schema releases, so parsing is
// tolerant: documents are walked into a plain node tree with namespaces
// discarded, and each field is probed with an ordered list of element-name
// candidates. A status outside the vocabulary comes back as UNKNOWN, never
// as an accepted state.
package interpreter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/schema"
)

var (
	receiptCandidates   = []string{"ReceiptId", "ReceiptID", "TransmissionReceiptId"}
	utidCandidates      = []string{"UniqueTransmissionId", "UTID"}
	statusCandidates    = []string{"TransmissionStatusCd", "ProcessingStatusCd", "SubmissionStatusCd", "StatusCd", "Status"}
	timestampCandidates = []string{"TransmissionTs", "AcknowledgementTs", "CompletedTs", "Timestamp"}
	recordCntCandidates = []string{"TotalRecipientFormCnt", "TotalRecordCnt", "RecordCnt"}
	acceptedCandidates  = []string{"AcceptedRecordCnt", "AcceptedCnt"}
	rejectedCandidates  = []string{"RejectedRecordCnt", "RejectedCnt"}

	errorGrpCandidates = []string{"ErrorDetailGrp", "ErrorGrp", "Error"}
	errorCdCandidates  = []string{"ErrorMessageCd", "ErrorCd", "Code"}
	errorTxtCandidates = []string{"ErrorMessageTxt", "ErrorTxt", "Message"}
	errorFldCandidates = []string{"XpathContentTxt", "FieldNm", "Field"}
	errorRecCandidates = []string{"UniqueRecordId", "RecordId"}
)

var errNoDocument = errors.New("no xml document found")

// Interpreter parses submit, status, and acknowledgment responses.
type Interpreter struct {
	table  *schema.Table
	logger *slog.Logger
}

func New(table *schema.Table, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		table:  table,
		logger: logger.With(slog.String("component", "interpreter")),
	}
}

// ParseSubmitResponse extracts the receipt from an intake response. A
// response with no recognizable receipt identifier is a ParseError.
func (in *Interpreter) ParseSubmitResponse(raw []byte) (domain.SubmissionReceipt, error) {
	root, err := parseTree(raw)
	if err != nil {
		return domain.SubmissionReceipt{}, &domain.ParseError{Op: "submit", Err: err}
	}
	receiptID := root.firstText(receiptCandidates)
	if receiptID == "" {
		return domain.SubmissionReceipt{}, &domain.ParseError{Op: "submit", Err: errors.New("no receipt identifier in response")}
	}
	return domain.SubmissionReceipt{
		ReceiptID:  receiptID,
		UTID:       root.firstText(utidCandidates),
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// ParseStatusResponse interprets a status-check response.
func (in *Interpreter) ParseStatusResponse(raw []byte) (domain.StatusResult, error) {
	root, err := parseTree(raw)
	if err != nil {
		return domain.StatusResult{}, &domain.ParseError{Op: "status", Err: err}
	}
	authorityStatus := root.firstText(statusCandidates)
	state := in.resolveState(authorityStatus)
	return domain.StatusResult{
		ReceiptID:       root.firstText(receiptCandidates),
		UTID:            root.firstText(utidCandidates),
		Status:          state,
		AuthorityStatus: authorityStatus,
		RecordCount:     root.firstInt(recordCntCandidates),
		AcceptedCount:   root.firstInt(acceptedCandidates),
		RejectedCount:   root.firstInt(rejectedCandidates),
		Errors:          collectErrors(root),
		Raw:             raw,
	}, nil
}

// ParseAckResponse interprets an acknowledgment response.
func (in *Interpreter) ParseAckResponse(raw []byte) (domain.AckDetail, error) {
	root, err := parseTree(raw)
	if err != nil {
		return domain.AckDetail{}, &domain.ParseError{Op: "acknowledgment", Err: err}
	}
	authorityStatus := root.firstText(statusCandidates)
	return domain.AckDetail{
		ReceiptID:       root.firstText(receiptCandidates),
		UTID:            root.firstText(utidCandidates),
		Status:          in.resolveState(authorityStatus),
		AuthorityStatus: authorityStatus,
		CompletedAt:     parseTime(root.firstText(timestampCandidates)),
		Errors:          collectErrors(root),
		Raw:             raw,
	}, nil
}

func (in *Interpreter) resolveState(authorityStatus string) domain.FilingState {
	state, ok := in.table.FilingStateFor(authorityStatus)
	if !ok && authorityStatus != "" {
		in.logger.Warn("authority status outside vocabulary",
			slog.String("authority_status", authorityStatus))
	}
	return state
}

func collectErrors(root *node) []domain.RecordError {
	var out []domain.RecordError
	for _, grp := range root.findAll(errorGrpCandidates) {
		out = append(out, domain.RecordError{
			UniqueRecordID: grp.firstText(errorRecCandidates),
			Code:           grp.firstText(errorCdCandidates),
			Message:        grp.firstText(errorTxtCandidates),
			Field:          grp.firstText(errorFldCandidates),
		})
	}
	return out
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// node is a namespace-free view of an XML element.
type node struct {
	name     string
	text     string
	children []*node
}

// parseTree decodes a document into a node tree, dropping namespaces and
// attributes. Malformed trailing content after the root is ignored.
func parseTree(raw []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var stack []*node
	var root *node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if root != nil {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errNoDocument
	}
	return root, nil
}

// firstText probes candidates in order, returning the first non-empty text
// match anywhere in the subtree. Name comparison is case-insensitive.
func (n *node) firstText(candidates []string) string {
	for _, name := range candidates {
		if found := n.find(name); found != nil {
			if text := strings.TrimSpace(found.text); text != "" {
				return text
			}
		}
	}
	return ""
}

func (n *node) firstInt(candidates []string) int {
	v, err := strconv.Atoi(n.firstText(candidates))
	if err != nil {
		return 0
	}
	return v
}

// find returns the first element named name (case-insensitive), depth-first.
func (n *node) find(name string) *node {
	if strings.EqualFold(n.name, name) {
		return n
	}
	for _, c := range n.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every element whose name matches any candidate.
func (n *node) findAll(candidates []string) []*node {
	var out []*node
	n.walk(func(c *node) {
		for _, name := range candidates {
			if strings.EqualFold(c.name, name) {
				out = append(out, c)
				return
			}
		}
	})
	return out
}

func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
