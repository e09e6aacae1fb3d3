package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// itemKeyVersion is bumped if the canonical encoding ever changes, so old
// persisted keys can be told apart from new ones.
const itemKeyVersion = "v1"

// ItemKey derives the identity of a cart line from its configuration.
// Identical (product, variation, attributes) always hash to the same key, in
// any map iteration order, so repeated adds merge into one line.
//
// Canonical form: "v1|<product>|<variation>|k=v;k=v|k=v1,v2;k=v" with
// variation_data and item_data keys sorted, item_data values sorted within
// each key, and delimiter characters escaped so attribute values can never
// collide with the structure.
func ItemKey(productID, variationID int64, variationData map[string]string, itemData map[string][]string) string {
	var b strings.Builder
	b.WriteString(itemKeyVersion)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(productID, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(variationID, 10))
	b.WriteByte('|')

	vKeys := make([]string, 0, len(variationData))
	for k := range variationData {
		vKeys = append(vKeys, k)
	}
	sort.Strings(vKeys)
	for i, k := range vKeys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(escapeKeyPart(k))
		b.WriteByte('=')
		b.WriteString(escapeKeyPart(variationData[k]))
	}
	b.WriteByte('|')

	iKeys := make([]string, 0, len(itemData))
	for k := range itemData {
		iKeys = append(iKeys, k)
	}
	sort.Strings(iKeys)
	for i, k := range iKeys {
		if i > 0 {
			b.WriteByte(';')
		}
		vals := make([]string, len(itemData[k]))
		for j, v := range itemData[k] {
			vals[j] = escapeKeyPart(v)
		}
		sort.Strings(vals)
		b.WriteString(escapeKeyPart(k))
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var keyPartEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	";", `\;`,
	"=", `\=`,
	",", `\,`,
)

func escapeKeyPart(s string) string {
	return keyPartEscaper.Replace(s)
}
