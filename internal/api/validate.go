package api

import (
	"fmt"

	"zoneops/internal/model"
)

func validateRecalcRequest(req *model.RecalcRequest) error {
	if req.RadiusKm < 0 {
		return fmt.Errorf("radiusKm must be >= 0")
	}
	if req.RadiusKm > 100 {
		return fmt.Errorf("radiusKm must be <= 100")
	}
	return nil
}

func validateOrderIn(in *model.OrderIn) error {
	if in.Address == "" && (in.Lat == nil || in.Lng == nil) {
		return fmt.Errorf("order needs an address or coordinates")
	}
	if (in.DeliveryStart == "") != (in.DeliveryEnd == "") {
		return fmt.Errorf("deliveryStart and deliveryEnd must be set together")
	}
	switch in.TimeSlot {
	case "", "morning", "afternoon", "evening":
	default:
		return fmt.Errorf("unknown timeSlot: %s (allowed: morning,afternoon,evening)", in.TimeSlot)
	}
	return nil
}

func validateStaffIn(in *model.StaffIn) error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.Role == "" {
		return fmt.Errorf("role is required")
	}
	switch in.Status {
	case "", model.StatusActive, model.StatusInactive:
	default:
		return fmt.Errorf("unknown status: %s", in.Status)
	}
	return nil
}
