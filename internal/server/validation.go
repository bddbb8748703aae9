package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"dublett/internal/auth"
	"dublett/internal/models"
)

const tenantHeader = "X-Tenant-ID"

var (
	fileIDRegex   = regexp.MustCompile(`^fl-[0-9a-z]{6}$`)
	groupIDRegex  = regexp.MustCompile(`^dg-[0-9a-z]{6}$`)
	actionIDRegex = regexp.MustCompile(`^ra-[0-9a-z]{6}$`)
)

func validateFileID(id string) bool {
	return fileIDRegex.MatchString(id)
}

func validateGroupID(id string) bool {
	return groupIDRegex.MatchString(id)
}

func validateActionID(id string) bool {
	return actionIDRegex.MatchString(id)
}

func normalizeStatus(value string) (string, error) {
	status, err := models.ParseResolutionStatus(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidStatus)
	}
	return string(status), nil
}

func normalizeGroupType(value string) (string, error) {
	groupType, err := models.ParseGroupType(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidType)
	}
	return string(groupType), nil
}

func normalizeStrategy(value string) (models.ResolutionStrategy, error) {
	strategy, err := models.ParseResolutionStrategy(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidStrategy)
	}
	return strategy, nil
}

// tenantFromRequest extracts and validates the tenant a request acts for.
// Every tenant-scoped endpoint requires it.
func tenantFromRequest(r *http.Request) (string, error) {
	tenant, err := auth.NormalizeTenantID(r.Header.Get(tenantHeader))
	if err != nil {
		return "", badRequestCode(fmt.Errorf("%s header: %w", tenantHeader, err), ErrCodeInvalidTenant)
	}
	return tenant, nil
}

func requireGroupPathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !validateGroupID(id) {
		return "", badRequestCode(fmt.Errorf("invalid group id"), ErrCodeInvalidID)
	}
	return id, nil
}

func requireFilePathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !validateFileID(id) {
		return "", badRequestCode(fmt.Errorf("invalid file id"), ErrCodeInvalidID)
	}
	return id, nil
}

func requireFileIDs(ids []string) error {
	for _, id := range ids {
		if !validateFileID(id) {
			return badRequestCode(fmt.Errorf("invalid file id %q", id), ErrCodeInvalidID)
		}
	}
	return nil
}
