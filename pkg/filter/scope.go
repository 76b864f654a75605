// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package filter

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ScopeError reports requested namespaces that do not exist in the cluster.
type ScopeError struct {
	Missing []string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("namespaces not found in cluster: %s", strings.Join(e.Missing, ", "))
}

// CheckScope verifies that every requested namespace exists in the cluster.
// Missing namespaces are reported in request order.
func CheckScope(clusterNamespaces, requested []string) error {
	missing := lo.Uniq(lo.Without(requested, clusterNamespaces...))
	if len(missing) > 0 {
		return &ScopeError{Missing: missing}
	}
	return nil
}
