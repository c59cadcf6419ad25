package staplelib

import "sync"

// VMap is a thread-safe generic map with read-write mutex protection.
type VMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewVMap creates and returns a new empty VMap instance.
func NewVMap[kT comparable, vT any]() VMap[kT, vT] {
	return VMap[kT, vT]{
		kv: make(map[kT]vT),
	}
}

// Set stores a value for the given key.
func (vm *VMap[kT, vT]) Set(key kT, val vT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.kv[key] = val
}

// Get retrieves a value for the given key.
func (vm *VMap[kT, vT]) Get(key kT) (val vT, ok bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	val, ok = vm.kv[key]
	return
}

// Del removes the entry for the given key, if any.
func (vm *VMap[kT, vT]) Del(key kT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.kv, key)
}

// Len returns the number of entries.
func (vm *VMap[kT, vT]) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.kv)
}

// Dump returns all keys and values as separate slices.
func (vm *VMap[kT, vT]) Dump() (keys []kT, vals []vT) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	keys = make([]kT, 0, len(vm.kv))
	vals = make([]vT, 0, len(vm.kv))
	for key, val := range vm.kv {
		keys = append(keys, key)
		vals = append(vals, val)
	}
	return
}
