package domain

import "time"

// TransactionType описывает направление денежной операции.
type TransactionType string

const (
	// TransactionTypeCredit — поступление средств (оплата заказа).
	TransactionTypeCredit TransactionType = "credit"
	// TransactionTypeDebit — списание средств.
	TransactionTypeDebit TransactionType = "debit"
	// TransactionTypeRefund — возврат средств клиенту по одобренному возврату.
	TransactionTypeRefund TransactionType = "refund"
)

// TransactionStatus описывает итог денежной операции.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// RefKind различает, на какую сущность ссылается запись леджера.
type RefKind string

const (
	// RefKindOrder — запись относится к заказу.
	RefKindOrder RefKind = "order"
	// RefKindReturn — запись относится к заявке на возврат.
	RefKindReturn RefKind = "return"
)

// LedgerRef — tagged union вместо динамической ссылки: читатель сам
// резолвит kind+id в заказ или возврат.
type LedgerRef struct {
	Kind RefKind
	ID   string
}

// Transaction — неизменяемая финансовая запись. После создания не
// мутируется; при повторной попытке создаётся новая запись.
// Инвариант: не более одной успешной записи типа refund на один возврат —
// это якорь идемпотентности всей системы расчёта.
type Transaction struct {
	ID          string
	Type        TransactionType
	Status      TransactionStatus
	AmountMinor int64
	Ref         LedgerRef
	// GatewayRef — внешний идентификатор операции в платёжном шлюзе.
	GatewayRef string
	CreatedAt  time.Time
}

// Validate проверяет корректность полей записи и возвращает ошибки, если они есть.
func (t *Transaction) Validate() []error {
	var errs []error

	switch t.Type {
	case TransactionTypeCredit, TransactionTypeDebit, TransactionTypeRefund:
	default:
		errs = append(errs, ErrLedgerTypeInvalid)
	}
	switch t.Status {
	case TransactionStatusSuccess, TransactionStatusPending, TransactionStatusFailed:
	default:
		errs = append(errs, ErrLedgerStatusInvalid)
	}
	switch t.Ref.Kind {
	case RefKindOrder, RefKindReturn:
	default:
		errs = append(errs, ErrLedgerRefInvalid)
	}
	if t.Ref.ID == "" {
		errs = append(errs, ErrLedgerRefInvalid)
	}
	if t.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}
