// Package register tracks which device EUI currently owns each
// subscribe topic. It holds no lock of its own: the Fleet Manager
// guards it with the same lock that guards its device maps, so the
// two mappings can never observe each other mid-update.
package register

import "fmt"

// Registry is a plain topic -> device EUI claim table.
type Registry struct {
	byTopic map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byTopic: make(map[string]string)}
}

// Bind claims topic for eui. It fails if the topic is already claimed
// by a different device, surfacing spec.md's "the Fleet Manager must
// detect the collision" requirement for non-templated topic settings.
func (r *Registry) Bind(topic, eui string) error {
	if existing, ok := r.byTopic[topic]; ok && existing != eui {
		return fmt.Errorf("register: topic %q already bound to device %q", topic, existing)
	}
	r.byTopic[topic] = eui
	return nil
}

// Release drops the claim on topic, if any.
func (r *Registry) Release(topic string) {
	delete(r.byTopic, topic)
}

// Status reports which device, if any, currently owns topic.
func (r *Registry) Status(topic string) (eui string, ok bool) {
	eui, ok = r.byTopic[topic]
	return eui, ok
}
