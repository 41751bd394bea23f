package helpers

import (
	"fmt"
	"strings"
)

// ExtractResourceGroup pulls the resource group name out of an ARM resource
// ID. Returns "" when the ID has no resourceGroups segment.
func ExtractResourceGroup(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// ExtractSubscription pulls the subscription ID out of an ARM resource ID.
func ExtractSubscription(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "subscriptions") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// ExtractResourceName returns the last segment of an ARM resource ID.
func ExtractResourceName(resourceID string) string {
	parts := strings.Split(strings.TrimSuffix(resourceID, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ResourceGroupID builds the ARM ID of a resource group.
func ResourceGroupID(subscriptionID, group string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", subscriptionID, group)
}
