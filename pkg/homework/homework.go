// Package homework contains the core domain types for the homework review notifier.
package homework

import (
	"errors"
	"fmt"
)

// Status values reported by the review API.
const (
	StatusApproved  = "approved"
	StatusReviewing = "reviewing"
	StatusRejected  = "rejected"
)

// Keys of the review API payload.
const (
	KeyCurrentDate = "current_date"
	KeyHomeworks   = "homeworks"
	KeyName        = "homework_name"
	KeyStatus      = "status"
)

// Verdicts maps a review status to the sentence shown to the student.
var Verdicts = map[string]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

var (
	// ErrNotMapping is returned when the API answer is not a JSON object.
	ErrNotMapping = errors.New("ответ сервера не является словарем")
	// ErrMissingKeys is returned when current_date or homeworks is absent.
	ErrMissingKeys = errors.New("в ответе сервера нет нужных ключей")
	// ErrHomeworksNotList is returned when homeworks is not a JSON array.
	ErrHomeworksNotList = errors.New("под ключом homeworks домашки приходят не в виде списка")
	// ErrRecordNotMapping is returned when a homework entry is not a JSON object.
	ErrRecordNotMapping = errors.New("запись о домашней работе не является словарем")
	// ErrMissingRecordKeys is returned when homework_name or status is absent.
	ErrMissingRecordKeys = errors.New("ключи отсутствуют")
)

// UnknownStatusError indicates a status with no entry in Verdicts.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("неизвестный статус: %s", e.Status)
}

// IsUnknownStatus checks if an error is an unknown status error.
func IsUnknownStatus(err error) bool {
	var unknown *UnknownStatusError
	return errors.As(err, &unknown)
}

// Record is a single homework entry as decoded from the API.
type Record = map[string]any

// CheckResponse validates the decoded API answer and returns its homeworks list.
func CheckResponse(response any) ([]any, error) {
	answer, ok := response.(map[string]any)
	if !ok {
		return nil, ErrNotMapping
	}

	_, hasDate := answer[KeyCurrentDate]
	homeworks, hasHomeworks := answer[KeyHomeworks]
	if !hasDate || !hasHomeworks {
		return nil, ErrMissingKeys
	}

	list, ok := homeworks.([]any)
	if !ok {
		return nil, ErrHomeworksNotList
	}
	return list, nil
}

// ParseStatus builds the notification text for one homework entry.
func ParseStatus(homework any) (string, error) {
	record, ok := homework.(Record)
	if !ok {
		return "", ErrRecordNotMapping
	}

	name, status := record[KeyName], record[KeyStatus]
	if name == nil || status == nil {
		return "", ErrMissingRecordKeys
	}

	key, _ := status.(string)
	verdict, ok := Verdicts[key]
	if !ok {
		return "", &UnknownStatusError{Status: fmt.Sprint(status)}
	}

	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", fmt.Sprint(name), verdict), nil
}
