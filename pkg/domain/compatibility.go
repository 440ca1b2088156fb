package domain

// compatibilityTable maps a recipient blood type to the ordered set of donor
// types medically transfusable into that recipient. The requested type is
// always first; substitutes follow with the same ABO group before universal
// donors. The matrix is asymmetric: O+ stock cannot serve an O- recipient
// even though the converse holds.
var compatibilityTable = map[BloodType][]BloodType{
	ONeg:  {ONeg},
	OPos:  {OPos, ONeg},
	ANeg:  {ANeg, ONeg},
	APos:  {APos, ANeg, OPos, ONeg},
	BNeg:  {BNeg, ONeg},
	BPos:  {BPos, BNeg, OPos, ONeg},
	ABNeg: {ABNeg, ANeg, BNeg, ONeg},
	ABPos: {ABPos, ABNeg, APos, ANeg, BPos, BNeg, OPos, ONeg},
}

// CompatibleDonors returns the ordered donor types that may satisfy a
// recipient of the given type, exact match first. It is total over the eight
// valid groups and fails with ErrInvalidBloodType for anything else.
func CompatibleDonors(recipient BloodType) ([]BloodType, error) {
	donors, ok := compatibilityTable[recipient]
	if !ok {
		return nil, InvalidBloodTypeError{Input: string(recipient)}
	}
	out := make([]BloodType, len(donors))
	copy(out, donors)
	return out, nil
}

// CanDonate reports whether donor stock is transfusable into a recipient of
// the given type. Unknown types are never compatible.
func CanDonate(donor, recipient BloodType) bool {
	donors, ok := compatibilityTable[recipient]
	if !ok {
		return false
	}
	for _, d := range donors {
		if d == donor {
			return true
		}
	}
	return false
}
