package policy

// ApplyCancellation returns the status order moves to when d is applied.
// Only an auto-approved decision against a not-yet-cancelled order produces a
// transition; the caller must write it conditionally on order.Status.
func ApplyCancellation(order *OrderSnapshot, d Decision) (OrderStatus, bool) {
	if order == nil || !d.IsApproved() {
		return "", false
	}
	if order.Status == OrderStatusCancelled {
		return "", false
	}
	return OrderStatusCancelled, true
}
