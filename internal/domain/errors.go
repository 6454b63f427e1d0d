package domain

import (
	"errors"
	"strings"
)

var (
	// ErrSaleNotFound возвращается, если продажа не найдена в репозитории.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleCanceled — попытка бизнес-операции над отменённой продажей.
	ErrSaleCanceled = errors.New("sale is canceled")
	// ErrSaleVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrSaleVersionConflict = errors.New("sale version conflict")
	// ErrSaleNumberConflict — сквозной номер уже занят другой продажей.
	ErrSaleNumberConflict = errors.New("sale number already taken")
	// ErrProductNotFound возвращается, если товар не найден.
	// Для оркестратора это эквивалент недоступности на складе.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — запрос с таким ключом уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ прислан с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")
	// ErrIdempotencyKeyNotFound — запись по idempotency-key отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// ValidationError несёт полный упорядоченный список нарушений бизнес-правил.
// Возникает до любого I/O и не оставляет частичных эффектов.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "sale validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "sale validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError оборачивает результат валидации в ошибку.
func NewValidationError(result ValidationResult) *ValidationError {
	return &ValidationError{Fields: result.Errors}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrSaleVersionConflict)
}

// IsValidation извлекает ValidationError из цепочки ошибок.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
