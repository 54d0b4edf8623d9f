package pipeline

import "strings"

// SharedCollectionName is the single collection used in tag-partitioned
// mode. It serves multiple logical tenants at once and is therefore never
// fully reset; isolation is simulated through exact tag-key filtering.
const SharedCollectionName = "main_collection"

// CollectionName derives the stable collection name of a project. It is a
// pure function: the same project id always yields the same name, with no
// leading or trailing whitespace.
func CollectionName(projectID string) string {
	return strings.TrimSpace("collection_" + strings.TrimSpace(projectID))
}
