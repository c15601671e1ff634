package validation

import "validation-worker/internal/domain"

// Kind describes one validator flavour: how it is addressed, how its results
// are labelled downstream, and which entities it consumes.
type Kind struct {
	Name      string
	AIService string
	Entities  []domain.EntityName
}

var (
	// VolumeType checks that volume types are correctly sized for their workloads.
	VolumeType = Kind{
		Name:      "volume-type",
		AIService: "volume-type-ai",
		Entities: []domain.EntityName{
			"container_nodes",
			"container_nodes_tags",
			"volume_attachments",
			"volumes",
			"volume_types",
			"vms",
			"sources",
		},
	}

	// InstanceType checks that instance types match the nodes they back.
	InstanceType = Kind{
		Name:      "instance-type",
		AIService: "instance-type-ai",
		Entities: []domain.EntityName{
			"container_nodes",
			"container_nodes_tags",
			"vms",
			"instance_types",
			"sources",
		},
	}
)

// WithAIService returns a copy of k whose results are labelled label.
// An empty label keeps the built-in one.
func (k Kind) WithAIService(label string) Kind {
	if label != "" {
		k.AIService = label
	}
	return k
}

// Kinds returns every built-in kind.
func Kinds() []Kind {
	return []Kind{VolumeType, InstanceType}
}

// KindByName looks up a built-in kind.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}
