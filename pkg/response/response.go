package response

import (
	"encoding/json"
	"net/http"
)

// Every endpoint answers with the platform envelope:
// {status: "success"|"error", message, data?, code?, errors?}.

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, message string, data any) {
	body := map[string]any{
		"status":  "success",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	JSON(w, http.StatusOK, body)
}

func Created(w http.ResponseWriter, message string, data any) {
	body := map[string]any{
		"status":  "success",
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	JSON(w, http.StatusCreated, body)
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

func ErrorWithData(w http.ResponseWriter, status int, code string, message string, data any) {
	JSON(w, status, map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func ValidationErrors(w http.ResponseWriter, message string, errors any) {
	JSON(w, http.StatusBadRequest, map[string]any{
		"status":  "error",
		"code":    "VALIDATION_ERROR",
		"message": message,
		"errors":  errors,
	})
}
