package hpack

import "fmt"

// DynamicTable is the FIFO of recently coded header fields. It is a circular
// buffer sized to the most entries the capacity could ever hold, so adding
// and evicting never allocate.
//
// Index 1 is the newest entry and index Length() the oldest.
type DynamicTable struct {
	headerFields []HeaderField
	head         int
	tail         int
	length       int
	size         int
	capacity     int
}

func NewDynamicTable(initialCapacity int) (*DynamicTable, error) {
	if initialCapacity < 0 {
		return nil, fmt.Errorf("%w: illegal capacity %d", ErrArgument, initialCapacity)
	}
	return newDynamicTable(initialCapacity), nil
}

func newDynamicTable(initialCapacity int) *DynamicTable {
	dt := &DynamicTable{capacity: -1}
	dt.setCapacity(initialCapacity)
	return dt
}

func (dt *DynamicTable) Length() int {
	return dt.length
}

// Size is the sum of the sizes of all entries.
func (dt *DynamicTable) Size() int {
	return dt.size
}

func (dt *DynamicTable) Capacity() int {
	return dt.capacity
}

// GetEntry returns the entry at index, 1 being the newest.
func (dt *DynamicTable) GetEntry(index int) (HeaderField, error) {
	if index <= 0 || index > dt.length {
		return HeaderField{}, fmt.Errorf("%w: dynamic table index %d, length %d", ErrIndexOutOfRange, index, dt.length)
	}
	i := dt.head - index
	if i < 0 {
		i += len(dt.headerFields)
	}
	return dt.headerFields[i], nil
}

// Add inserts header as the newest entry, evicting the oldest entries until
// it fits. A header larger than the capacity empties the table instead.
func (dt *DynamicTable) Add(header HeaderField) {
	headerSize := header.Size()
	if headerSize > dt.capacity {
		dt.Clear()
		return
	}
	for dt.size+headerSize > dt.capacity {
		dt.Remove()
	}

	dt.headerFields[dt.head] = header
	dt.head++
	if dt.head == len(dt.headerFields) {
		dt.head = 0
	}
	dt.length++
	dt.size += headerSize
}

// Remove evicts and returns the oldest entry.
func (dt *DynamicTable) Remove() (HeaderField, bool) {
	if dt.length == 0 {
		return HeaderField{}, false
	}

	removed := dt.headerFields[dt.tail]
	dt.headerFields[dt.tail] = HeaderField{}
	dt.tail++
	if dt.tail == len(dt.headerFields) {
		dt.tail = 0
	}
	dt.length--
	dt.size -= removed.Size()

	return removed, true
}

func (dt *DynamicTable) Clear() {
	for i := range dt.headerFields {
		dt.headerFields[i] = HeaderField{}
	}
	dt.head = 0
	dt.tail = 0
	dt.length = 0
	dt.size = 0
}

// SetCapacity changes the maximum size of the table, evicting the oldest
// entries until the current size fits.
func (dt *DynamicTable) SetCapacity(capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: illegal capacity %d", ErrArgument, capacity)
	}
	dt.setCapacity(capacity)
	return nil
}

func (dt *DynamicTable) setCapacity(capacity int) {
	if dt.capacity == capacity {
		return
	}
	dt.capacity = capacity

	if capacity == 0 {
		dt.Clear()
	} else {
		for dt.size > capacity {
			dt.Remove()
		}
	}

	maxEntries := capacity / HEADER_ENTRY_OVERHEAD
	if capacity%HEADER_ENTRY_OVERHEAD != 0 {
		maxEntries++
	}
	if dt.headerFields != nil && len(dt.headerFields) == maxEntries {
		return
	}

	// Re-lay the surviving entries oldest first from slot 0.
	tmp := make([]HeaderField, maxEntries)
	cursor := dt.tail
	for i := 0; i < dt.length; i++ {
		tmp[i] = dt.headerFields[cursor]
		cursor++
		if cursor == len(dt.headerFields) {
			cursor = 0
		}
	}

	dt.tail = 0
	dt.head = dt.length
	if dt.head == maxEntries {
		dt.head = 0
	}
	dt.headerFields = tmp
}
