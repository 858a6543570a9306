package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sernascript/tollsync/internal/domain"
)

const dateLayout = "2006-01-02"

// Account movement directions on journal lines
const (
	MovementDebit  = "Debit"
	MovementCredit = "Credit"
)

// Constants are the fixed identifiers stamped on every ledger entry,
// mirrored from the accounting system's configuration
type Constants struct {
	PurchaseDocumentTypeID   int
	JournalDocumentTypeID    int
	PurchaseAccountCode      string
	JournalDebitAccountCode  string
	JournalCreditAccountCode string
	CounterpartyCostCenterID int
	VendorIdentification     string
	PaymentMeanID            int
}

// DocumentRef identifies the document type header in the accounting system
type DocumentRef struct {
	ID int `json:"id"`
}

// Supplier is the fixed vendor identity on purchase headers
type Supplier struct {
	Identification string `json:"identification"`
	BranchOffice   int    `json:"branch_office"`
}

// ProviderInvoice carries the provider-invoice reference split from the
// source document number
type ProviderInvoice struct {
	Prefix string `json:"prefix"`
	Number string `json:"number"`
}

// PurchaseItem is a single purchase line
type PurchaseItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Payment is one payment entry on a purchase
type Payment struct {
	ID      int             `json:"id"`
	Value   decimal.Decimal `json:"value"`
	DueDate string          `json:"due_date"`
}

// PurchasePayload is the ledger-entry shape submitted for "FC" documents
type PurchasePayload struct {
	Document        DocumentRef     `json:"document"`
	Date            string          `json:"date"`
	Supplier        Supplier        `json:"supplier"`
	CostCenter      int             `json:"cost_center"`
	ProviderInvoice ProviderInvoice `json:"provider_invoice"`
	Observations    string          `json:"observations"`
	Items           []PurchaseItem  `json:"items"`
	Payments        []Payment       `json:"payments"`
}

// AccountRef is an account code plus movement direction on a journal line
type AccountRef struct {
	Code     string `json:"code"`
	Movement string `json:"movement"`
}

// DueRef is the due-date reference parsed from the related document
type DueRef struct {
	Prefix      string `json:"prefix"`
	Consecutive int    `json:"consecutive"`
}

// JournalItem is a single journal voucher line
type JournalItem struct {
	Account     AccountRef      `json:"account"`
	CostCenter  int             `json:"cost_center"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Due         *DueRef         `json:"due,omitempty"`
}

// JournalPayload is the ledger-entry shape submitted for every document
// type other than "FC"
type JournalPayload struct {
	Document     DocumentRef   `json:"document"`
	Date         string        `json:"date"`
	Observations string        `json:"observations"`
	Items        []JournalItem `json:"items"`
}

// Balanced reports whether the sum of debit values equals the sum of
// credit values
func (p *JournalPayload) Balanced() bool {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, item := range p.Items {
		switch item.Account.Movement {
		case MovementDebit:
			debits = debits.Add(item.Value)
		case MovementCredit:
			credits = credits.Add(item.Value)
		}
	}
	return debits.Equal(credits)
}

// CreateResult is the identifier returned by the accounting system on a
// successful entry creation
type CreateResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`

	// Raw is the unparsed response body, kept for operator debugging on
	// the single-record migration path
	Raw string `json:"-"`
}

// BuildPurchase constructs the purchase payload for an "FC" transaction.
// Logic:
//  1. Header: fixed purchase document type, date = creation day, fixed supplier
//  2. Cost center: the one resolved from the license plate
//  3. Provider invoice: document number split at the first "-"
//  4. One line item on the fixed purchase account, quantity 1, price = subtotal
//  5. One payment for the full subtotal due the same date
func BuildPurchase(tx *domain.TollTransaction, cc *domain.CostCenter, consts Constants) (*PurchasePayload, error) {
	if tx.Route() != domain.RoutePurchase {
		return nil, fmt.Errorf("document type %q does not route to the purchase path", tx.DocumentType)
	}
	if cc == nil {
		return nil, errors.New("purchase requires a resolved cost center")
	}

	prefix, number := domain.SplitDocumentNumber(tx.DocumentNumber)
	date := tx.CreationDay().Format(dateLayout)

	return &PurchasePayload{
		Document: DocumentRef{ID: consts.PurchaseDocumentTypeID},
		Date:     date,
		Supplier: Supplier{
			Identification: consts.VendorIdentification,
			BranchOffice:   0,
		},
		CostCenter: cc.ID,
		ProviderInvoice: ProviderInvoice{
			Prefix: prefix,
			Number: number,
		},
		Observations: observations(tx),
		Items: []PurchaseItem{
			{
				Code:        consts.PurchaseAccountCode,
				Description: observations(tx),
				Quantity:    1,
				Price:       tx.Subtotal,
			},
		},
		Payments: []Payment{
			{
				ID:      consts.PaymentMeanID,
				Value:   tx.Subtotal,
				DueDate: date,
			},
		},
	}, nil
}

// BuildJournal constructs the journal payload for a non-"FC" transaction.
// Logic:
//  1. Header: fixed journal document type, date = creation day
//  2. Debit line: fixed clearing account, resolved cost center, due
//     reference parsed from the related document
//  3. Credit line: fixed expense account, fixed counter-party cost center
//
// Safety: both lines carry the subtotal, so the voucher always balances
func BuildJournal(tx *domain.TollTransaction, cc *domain.CostCenter, consts Constants) (*JournalPayload, error) {
	if tx.Route() != domain.RouteJournal {
		return nil, fmt.Errorf("document type %q does not route to the journal path", tx.DocumentType)
	}
	if cc == nil {
		return nil, errors.New("journal requires a resolved cost center")
	}

	duePrefix, consecutive := domain.ParseRelatedDocument(tx.RelatedDocument)

	payload := &JournalPayload{
		Document:     DocumentRef{ID: consts.JournalDocumentTypeID},
		Date:         tx.CreationDay().Format(dateLayout),
		Observations: observations(tx),
		Items: []JournalItem{
			{
				Account: AccountRef{
					Code:     consts.JournalDebitAccountCode,
					Movement: MovementDebit,
				},
				CostCenter:  cc.ID,
				Description: observations(tx),
				Value:       tx.Subtotal,
				Due: &DueRef{
					Prefix:      duePrefix,
					Consecutive: consecutive,
				},
			},
			{
				Account: AccountRef{
					Code:     consts.JournalCreditAccountCode,
					Movement: MovementCredit,
				},
				CostCenter:  consts.CounterpartyCostCenterID,
				Description: observations(tx),
				Value:       tx.Subtotal,
			},
		},
	}

	if !payload.Balanced() {
		return nil, errors.New("journal payload does not balance")
	}

	return payload, nil
}

// observations builds the free-text line carried on ledger entries
func observations(tx *domain.TollTransaction) string {
	if tx.Description != "" {
		return tx.Description
	}
	return fmt.Sprintf("Peaje %s placa %s", tx.TollName, tx.LicensePlate)
}
