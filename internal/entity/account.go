package entity

type Role string

const (
	AdminRole    Role = "admin"
	UpgraderRole Role = "upgrader"
	StaffRole    Role = "staff"
	ServerRole   Role = "server"
)

type MembershipTier uint64

const (
	FounderTier MembershipTier = 1
	VipTier     MembershipTier = 2
	VvipTier    MembershipTier = 3
)

type TokenStandard string

const (
	SingleOwner  TokenStandard = "single"
	MultiBalance TokenStandard = "multi"
)
