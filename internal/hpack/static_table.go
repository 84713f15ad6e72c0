package hpack

import "fmt"

const STATIC_TABLE_SIZE = 61

type StaticTable [STATIC_TABLE_SIZE + 1]HeaderField

var (
	staticTable       = initStaticTable()
	staticIndexByName = initStaticIndex()
)

func initStaticTable() *StaticTable {
	staticTable_ := new(StaticTable)
	staticTable_[1] = NewHeaderField(":authority", "")
	staticTable_[2] = NewHeaderField(":method", "GET")
	staticTable_[3] = NewHeaderField(":method", "POST")
	staticTable_[4] = NewHeaderField(":path", "/")
	staticTable_[5] = NewHeaderField(":path", "/index.html")
	staticTable_[6] = NewHeaderField(":scheme", "http")
	staticTable_[7] = NewHeaderField(":scheme", "https")
	staticTable_[8] = NewHeaderField(":status", "200")
	staticTable_[9] = NewHeaderField(":status", "204")
	staticTable_[10] = NewHeaderField(":status", "206")
	staticTable_[11] = NewHeaderField(":status", "304")
	staticTable_[12] = NewHeaderField(":status", "400")
	staticTable_[13] = NewHeaderField(":status", "404")
	staticTable_[14] = NewHeaderField(":status", "500")
	staticTable_[15] = NewHeaderField("accept-charset", "")
	staticTable_[16] = NewHeaderField("accept-encoding", "gzip, deflate")
	staticTable_[17] = NewHeaderField("accept-language", "")
	staticTable_[18] = NewHeaderField("accept-ranges", "")
	staticTable_[19] = NewHeaderField("accept", "")
	staticTable_[20] = NewHeaderField("access-control-allow-origin", "")
	staticTable_[21] = NewHeaderField("age", "")
	staticTable_[22] = NewHeaderField("allow", "")
	staticTable_[23] = NewHeaderField("authorization", "")
	staticTable_[24] = NewHeaderField("cache-control", "")
	staticTable_[25] = NewHeaderField("content-disposition", "")
	staticTable_[26] = NewHeaderField("content-encoding", "")
	staticTable_[27] = NewHeaderField("content-language", "")
	staticTable_[28] = NewHeaderField("content-length", "")
	staticTable_[29] = NewHeaderField("content-location", "")
	staticTable_[30] = NewHeaderField("content-range", "")
	staticTable_[31] = NewHeaderField("content-type", "")
	staticTable_[32] = NewHeaderField("cookie", "")
	staticTable_[33] = NewHeaderField("date", "")
	staticTable_[34] = NewHeaderField("etag", "")
	staticTable_[35] = NewHeaderField("expect", "")
	staticTable_[36] = NewHeaderField("expires", "")
	staticTable_[37] = NewHeaderField("from", "")
	staticTable_[38] = NewHeaderField("host", "")
	staticTable_[39] = NewHeaderField("if-match", "")
	staticTable_[40] = NewHeaderField("if-modified-since", "")
	staticTable_[41] = NewHeaderField("if-none-match", "")
	staticTable_[42] = NewHeaderField("if-range", "")
	staticTable_[43] = NewHeaderField("if-unmodified-since", "")
	staticTable_[44] = NewHeaderField("last-modified", "")
	staticTable_[45] = NewHeaderField("link", "")
	staticTable_[46] = NewHeaderField("location", "")
	staticTable_[47] = NewHeaderField("max-forwards", "")
	staticTable_[48] = NewHeaderField("proxy-authenticate", "")
	staticTable_[49] = NewHeaderField("proxy-authorization", "")
	staticTable_[50] = NewHeaderField("range", "")
	staticTable_[51] = NewHeaderField("referer", "")
	staticTable_[52] = NewHeaderField("refresh", "")
	staticTable_[53] = NewHeaderField("retry-after", "")
	staticTable_[54] = NewHeaderField("server", "")
	staticTable_[55] = NewHeaderField("set-cookie", "")
	staticTable_[56] = NewHeaderField("strict-transport-security", "")
	staticTable_[57] = NewHeaderField("transfer-encoding", "")
	staticTable_[58] = NewHeaderField("user-agent", "")
	staticTable_[59] = NewHeaderField("vary", "")
	staticTable_[60] = NewHeaderField("via", "")
	staticTable_[61] = NewHeaderField("www-authenticate", "")

	return staticTable_
}

// initStaticIndex maps each name to the lowest index carrying it. The table
// is walked backwards so earlier entries overwrite later ones.
func initStaticIndex() map[string]int {
	index := make(map[string]int, STATIC_TABLE_SIZE)
	for i := STATIC_TABLE_SIZE; i > 0; i-- {
		index[string(staticTable[i].Name)] = i
	}
	return index
}

// StaticEntry returns the static table entry at index, 1 through 61.
func StaticEntry(index int) (HeaderField, error) {
	if index <= 0 || index > STATIC_TABLE_SIZE {
		return HeaderField{}, fmt.Errorf("%w: static table index %d", ErrIndexOutOfRange, index)
	}
	return staticTable[index], nil
}

// StaticIndex returns the lowest static table index whose name matches.
func StaticIndex(name []byte) (int, bool) {
	index, ok := staticIndexByName[string(name)]
	return index, ok
}

// StaticIndexOf returns the static table index of the exact name/value pair.
// Entries sharing a name are contiguous, so the scan starts at the first one
// and stops as soon as the name changes.
func StaticIndexOf(name, value []byte) (int, bool) {
	index, ok := StaticIndex(name)
	if !ok {
		return 0, false
	}

	for ; index <= STATIC_TABLE_SIZE; index++ {
		entry := staticTable[index]
		if string(entry.Name) != string(name) {
			break
		}
		if string(entry.Value) == string(value) {
			return index, true
		}
	}

	return 0, false
}
