package core

import "sort"

// MonthGroup is one month of active expenses and its total.
type MonthGroup struct {
	Month    MonthKey
	Expenses []Expense
	Total    Money
}

// GroupOptions limits grouping to an inclusive window of months.
// Empty bounds are open.
type GroupOptions struct {
	From MonthKey
	To   MonthKey
}

func (o GroupOptions) includes(m MonthKey) bool {
	if o.From != "" && m < o.From {
		return false
	}
	if o.To != "" && m > o.To {
		return false
	}
	return true
}

// GroupByMonth buckets every expense into the months it is active in.
//
// Months are returned in ascending order, expenses inside a month by billing
// day (ties keep input order) and months with no active expense are left out.
func GroupByMonth(expenses []Expense, opts GroupOptions) []MonthGroup {
	buckets := make(map[MonthKey][]Expense)
	for _, e := range expenses {
		for _, m := range Expand(e) {
			if !opts.includes(m) {
				continue
			}
			buckets[m] = append(buckets[m], e.Clone())
		}
	}

	keys := make([]MonthKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	groups := make([]MonthGroup, 0, len(keys))
	for _, k := range keys {
		items := buckets[k]
		if len(items) == 0 {
			continue
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].BillingDay() < items[j].BillingDay()
		})
		groups = append(groups, MonthGroup{
			Month:    k,
			Expenses: items,
			Total:    Total(items),
		})
	}
	return groups
}

// Total sums the amounts of expenses exactly.
func Total(expenses []Expense) Money {
	var sum Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}
