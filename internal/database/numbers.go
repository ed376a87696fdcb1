package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewIncidentNumber generates a human-readable incident number,
// e.g. INC-20250314-7F3A
func NewIncidentNumber(now time.Time) string {
	return fmt.Sprintf("INC-%s-%s", now.Format("20060102"), shortSuffix())
}

// NewReportNumber generates a human-readable RCA report number,
// e.g. RCA-20250314-7F3A
func NewReportNumber(now time.Time) string {
	return fmt.Sprintf("RCA-%s-%s", now.Format("20060102"), shortSuffix())
}

func shortSuffix() string {
	id := strings.ToUpper(uuid.NewString())
	return id[:4]
}
