package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&PackageTier{},
		&SurveyPrice{},
		&ExtraFeature{},
		&FeatureAdditional{},
		&BuyerEntitlement{},
		&MapOrder{},
	}
}
