package purchases

import (
	"math/rand"
	"reflect"
	"testing"

	"item-diversity/internal/catalog"
)

const (
	infinityEdge = 3031
	rabadon      = 3089
	botrk        = 3153
	bloodthirst  = 3072
	ldr          = 3036
	manamune     = 3004
	muramana     = 3042

	kraken  = 6672
	liandry = 6653
	trinity = 3078
)

func buy(item int, ts int64) Event  { return Event{ItemID: item, Timestamp: ts, Kind: KindPurchase} }
func undo(item int, ts int64) Event { return Event{ItemID: item, Timestamp: ts, Kind: KindUndo} }
func sell(item int, ts int64) Event { return Event{ItemID: item, Timestamp: ts, Kind: KindSale} }

func itemIDs(ps []Purchase) []int {
	ids := make([]int, len(ps))
	for i, p := range ps {
		ids[i] = p.ItemID
	}
	return ids
}

func TestFirstMythic(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   int
	}{
		{"no events", nil, 0},
		{"single purchase", []Event{buy(kraken, 100)}, kraken},
		{"single undo", []Event{undo(kraken, 100)}, 0},
		{"single sale", []Event{sell(kraken, 100)}, 0},
		{"sale is terminal", []Event{buy(kraken, 1), sell(kraken, 2), buy(liandry, 3)}, kraken},
		{"re-buy after undo keeps latest", []Event{buy(kraken, 1), undo(kraken, 2), buy(liandry, 3)}, liandry},
		{"undone without replacement", []Event{buy(kraken, 1), undo(kraken, 2)}, 0},
		{"sale first drops everything", []Event{sell(trinity, 1), buy(kraken, 2), buy(liandry, 3)}, 0},
		{"unsorted delivery", []Event{buy(liandry, 30), undo(kraken, 20), buy(kraken, 10)}, liandry},
		{"undo of a different mythic keeps purchase", []Event{buy(kraken, 1), undo(liandry, 2)}, kraken},
		{"two purchases keep the last", []Event{buy(kraken, 1), buy(liandry, 2)}, liandry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FirstMythic(tt.events)
			if got.ItemID != tt.want {
				t.Errorf("FirstMythic() = %d, want %d", got.ItemID, tt.want)
			}
			if got.ItemID != 0 && got.Tier != catalog.TierMythic {
				t.Errorf("Expected mythic tier, got %v", got.Tier)
			}
		})
	}
}

func TestRetainedLegendaries(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   []int
	}{
		{"no events", nil, []int{}},
		{"single purchase", []Event{buy(infinityEdge, 5)}, []int{infinityEdge}},
		{"single undo", []Event{undo(infinityEdge, 5)}, []int{}},
		{"single sale", []Event{sell(infinityEdge, 5)}, []int{}},
		{"undo cancels its purchase", []Event{buy(infinityEdge, 1), undo(infinityEdge, 2)}, []int{}},
		{
			"undo cancels exactly one purchase",
			[]Event{buy(infinityEdge, 1), buy(infinityEdge, 2), undo(infinityEdge, 3)},
			[]int{infinityEdge},
		},
		{
			"undo picks the nearest earlier purchase",
			[]Event{buy(infinityEdge, 1), buy(rabadon, 2), buy(infinityEdge, 3), undo(infinityEdge, 4)},
			[]int{infinityEdge, rabadon},
		},
		{
			"undo only matches the same item",
			[]Event{buy(infinityEdge, 1), buy(rabadon, 2), undo(rabadon, 3)},
			[]int{infinityEdge},
		},
		{
			"undo before any purchase is ignored",
			[]Event{undo(infinityEdge, 1), buy(infinityEdge, 2)},
			[]int{infinityEdge},
		},
		{
			"sales are ignored",
			[]Event{buy(infinityEdge, 1), sell(infinityEdge, 2), buy(rabadon, 3)},
			[]int{infinityEdge, rabadon},
		},
		{
			"undo redo pairs",
			[]Event{buy(botrk, 1), undo(botrk, 2), buy(botrk, 3), undo(botrk, 4), buy(botrk, 5)},
			[]int{botrk},
		},
		{
			"delivery order is irrelevant",
			[]Event{buy(ldr, 40), undo(rabadon, 30), buy(rabadon, 20), buy(infinityEdge, 10)},
			[]int{infinityEdge, ldr},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := itemIDs(RetainedLegendaries(tt.events))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RetainedLegendaries() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestReconcile_Truncation tests that only the 5 earliest items are kept
func TestReconcile_Truncation(t *testing.T) {
	p := PlayerEvents{
		Legendary: []Event{
			buy(infinityEdge, 700),
			buy(rabadon, 100),
			buy(botrk, 300),
			buy(bloodthirst, 600),
			buy(ldr, 400),
			buy(manamune, 200),
		},
		Mythic: []Event{buy(kraken, 50)},
	}

	res := Reconcile(p)

	want := []int{kraken, rabadon, manamune, botrk, ldr}
	if got := itemIDs(res.Retained); !reflect.DeepEqual(got, want) {
		t.Fatalf("Retained = %v, want %v", got, want)
	}
	if res.FirstMythic != kraken {
		t.Errorf("FirstMythic = %d, want %d", res.FirstMythic, kraken)
	}
	for i, item := range res.Retained {
		if item.Position != i+1 {
			t.Errorf("Item %d has position %d", i, item.Position)
		}
	}
	if res.Retained[0].Tier != catalog.TierMythic || res.Retained[1].Tier != catalog.TierLegendary {
		t.Error("Expected tiers to be tagged on merged items")
	}
}

// TestReconcile_NoPurchases tests the empty player case
func TestReconcile_NoPurchases(t *testing.T) {
	res := Reconcile(PlayerEvents{})
	if res.FirstMythic != 0 {
		t.Errorf("FirstMythic = %d, want 0", res.FirstMythic)
	}
	if len(res.Retained) != 0 {
		t.Errorf("Expected no retained items, got %v", res.Retained)
	}
}

// TestMerge_TiePrefersLegendary tests that a legendary bought at the same time as the mythic comes first
func TestMerge_TiePrefersLegendary(t *testing.T) {
	got := Merge(
		[]Purchase{{ItemID: infinityEdge, Timestamp: 100, Tier: catalog.TierLegendary}},
		Purchase{ItemID: kraken, Timestamp: 100, Tier: catalog.TierMythic},
		MaxRetained,
	)
	if ids := itemIDs(got); !reflect.DeepEqual(ids, []int{infinityEdge, kraken}) {
		t.Errorf("Merge() = %v, want [%d %d]", ids, infinityEdge, kraken)
	}
}

// TestReconcile_Deterministic tests that shuffled delivery always yields the same result
func TestReconcile_Deterministic(t *testing.T) {
	p := PlayerEvents{
		Legendary: []Event{
			buy(infinityEdge, 100), undo(infinityEdge, 100), buy(infinityEdge, 150),
			buy(rabadon, 200), sell(rabadon, 900), buy(botrk, 300), undo(botrk, 310),
			buy(ldr, 400), buy(bloodthirst, 500), buy(manamune, 600),
		},
		Mythic: []Event{buy(kraken, 120), undo(kraken, 130), buy(liandry, 140), sell(liandry, 1000), buy(trinity, 1100)},
	}
	want := Reconcile(p)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := PlayerEvents{
			Legendary: append([]Event(nil), p.Legendary...),
			Mythic:    append([]Event(nil), p.Mythic...),
		}
		rng.Shuffle(len(shuffled.Legendary), func(a, b int) {
			shuffled.Legendary[a], shuffled.Legendary[b] = shuffled.Legendary[b], shuffled.Legendary[a]
		})
		rng.Shuffle(len(shuffled.Mythic), func(a, b int) {
			shuffled.Mythic[a], shuffled.Mythic[b] = shuffled.Mythic[b], shuffled.Mythic[a]
		})

		if got := Reconcile(shuffled); !reflect.DeepEqual(got, want) {
			t.Fatalf("Shuffle %d: got %+v, want %+v", i, got, want)
		}
	}

	if want.FirstMythic != liandry {
		t.Errorf("FirstMythic = %d, want %d", want.FirstMythic, liandry)
	}
	wantItems := []int{liandry, infinityEdge, rabadon, ldr, bloodthirst}
	if got := itemIDs(want.Retained); !reflect.DeepEqual(got, wantItems) {
		t.Errorf("Retained = %v, want %v", got, wantItems)
	}
}
