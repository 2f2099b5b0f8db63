package validators

import "go.mongodb.org/mongo-driver/bson"

var GroupingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "status", "period_start", "period_end"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"active", "inactive"},
			},
			"period_start": bson.M{
				"bsonType": "date",
			},
			"period_end": bson.M{
				"bsonType": "date",
			},
			"rows": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"rotation_day", "block_number"},
				},
			},
		},
	},
}

var InstructorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"employee": bson.M{
				"bsonType":  "string",
				"maxLength": 140,
			},
		},
	},
}

var LocationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "is_group", "bookable"},
		"additionalProperties": true,

		"properties": bson.M{
			"parent_id": bson.M{
				"bsonType": "string",
			},
			"is_group": bson.M{
				"bsonType": "bool",
			},
			"bookable": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
