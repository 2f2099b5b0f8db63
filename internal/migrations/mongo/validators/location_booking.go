package validators

import "go.mongodb.org/mongo-driver/bson"

var LocationBookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"location",
			"from_datetime",
			"to_datetime",
			"occupancy_type",
			"source_kind",
			"source_name",
			"slot_key",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"location": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"from_datetime": bson.M{
				"bsonType": "date",
			},

			"to_datetime": bson.M{
				"bsonType": "date",
			},

			"occupancy_type": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 60,
			},

			"source_kind": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"source_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"slot_key": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 512,
			},
		},
	},
}
