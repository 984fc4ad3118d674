package pii

import (
	"fmt"
	"math/rand"
	"strings"
)

// Dummy value generators for the canonical entity labels. Values are shaped
// like the Polish documents the corpus is built from, but are never real:
// e-mail domains are RFC 2606 reserved and numbers are random.

var firstNames = []string{
	"Anna", "Maria", "Katarzyna", "Małgorzata", "Agnieszka", "Barbara", "Ewa", "Zofia",
	"Krystyna", "Magdalena", "Joanna", "Aleksandra", "Monika", "Natalia", "Julia", "Alicja",
	"Piotr", "Krzysztof", "Andrzej", "Tomasz", "Paweł", "Jan", "Michał", "Marcin",
	"Jakub", "Łukasz", "Adam", "Wojciech", "Mateusz", "Grzegorz", "Stanisław", "Szymon",
}

var surnames = []string{
	"Nowak", "Kowalski", "Wiśniewski", "Wójcik", "Kowalczyk", "Kamiński", "Lewandowski", "Zieliński",
	"Szymański", "Woźniak", "Dąbrowski", "Kozłowski", "Jankowski", "Mazur", "Kwiatkowski", "Krawczyk",
	"Piotrowski", "Grabowski", "Nowakowski", "Pawłowski", "Michalski", "Król", "Wieczorek", "Jabłoński",
	"Wróbel", "Majewski", "Olszewski", "Stępień", "Malinowski", "Jaworski", "Adamczyk", "Górski",
}

var cities = []string{
	"Warszawa", "Kraków", "Łódź", "Wrocław", "Poznań", "Gdańsk", "Szczecin", "Bydgoszcz",
	"Lublin", "Białystok", "Katowice", "Gdynia", "Częstochowa", "Radom", "Toruń", "Sosnowiec",
	"Kielce", "Rzeszów", "Gliwice", "Zabrze", "Olsztyn", "Bielsko-Biała", "Bytom", "Zielona Góra",
}

var streets = []string{
	"Marszałkowska", "Długa", "Krótka", "Polna", "Leśna", "Słoneczna", "Ogrodowa", "Lipowa",
	"Mickiewicza", "Kościuszki", "Piłsudskiego", "Sienkiewicza", "Szkolna", "Kwiatowa", "Parkowa", "Kolejowa",
}

// FirstNameGenerator generates dummy first names
func FirstNameGenerator(rng *rand.Rand, original string) string {
	return firstNames[rng.Intn(len(firstNames))]
}

// SurnameGenerator generates dummy last names
func SurnameGenerator(rng *rand.Rand, original string) string {
	return surnames[rng.Intn(len(surnames))]
}

// CityGenerator generates dummy city names
func CityGenerator(rng *rand.Rand, original string) string {
	return cities[rng.Intn(len(cities))]
}

// AddressGenerator generates dummy street addresses with a postal code
func AddressGenerator(rng *rand.Rand, original string) string {
	street := streets[rng.Intn(len(streets))]
	building := 1 + rng.Intn(150)
	postal := fmt.Sprintf("%02d-%03d", rng.Intn(100), rng.Intn(1000))
	city := cities[rng.Intn(len(cities))]

	if rng.Float32() < 0.4 {
		flat := 1 + rng.Intn(80)
		return fmt.Sprintf("ul. %s %d/%d, %s %s", street, building, flat, postal, city)
	}
	return fmt.Sprintf("ul. %s %d, %s %s", street, building, postal, city)
}

// EmailGenerator generates dummy email addresses
func EmailGenerator(rng *rand.Rand, original string) string {
	// RFC 2606 / RFC 6761 reserved domains only
	domains := []string{"example.com", "example.org", "example.net", "test.pl", "invalid.pl"}

	first := asciiFold(strings.ToLower(firstNames[rng.Intn(len(firstNames))]))
	last := asciiFold(strings.ToLower(surnames[rng.Intn(len(surnames))]))
	domain := domains[rng.Intn(len(domains))]

	separators := []string{".", "_", ""}
	return fmt.Sprintf("%s%s%s@%s", first, separators[rng.Intn(len(separators))], last, domain)
}

// PhoneGenerator generates dummy Polish phone numbers
func PhoneGenerator(rng *rand.Rand, original string) string {
	a := 500 + rng.Intn(400)
	b := rng.Intn(1000)
	c := rng.Intn(1000)

	formats := []string{"%03d %03d %03d", "+48 %03d %03d %03d", "%03d-%03d-%03d", "+48%03d%03d%03d"}
	return fmt.Sprintf(formats[rng.Intn(len(formats))], a, b, c)
}

// PeselGenerator generates dummy PESEL numbers with a valid checksum
func PeselGenerator(rng *rand.Rand, original string) string {
	year := 1950 + rng.Intn(55)
	month := 1 + rng.Intn(12)
	day := 1 + rng.Intn(28)
	if year >= 2000 {
		month += 20
	}

	digits := fmt.Sprintf("%02d%02d%02d%04d", year%100, month, day, rng.Intn(10000))
	return digits + string(rune('0'+peselChecksum(digits)))
}

func peselChecksum(first10 string) int {
	weights := []int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}
	sum := 0
	for i, w := range weights {
		sum += int(first10[i]-'0') * w
	}
	return (10 - sum%10) % 10
}

// BankAccountGenerator generates dummy Polish account numbers (NRB format)
func BankAccountGenerator(rng *rand.Rand, original string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%02d", rng.Intn(100)))
	for i := 0; i < 6; i++ {
		b.WriteString(fmt.Sprintf(" %04d", rng.Intn(10000)))
	}
	if rng.Float32() < 0.3 {
		return "PL" + b.String()
	}
	return b.String()
}

// CreditCardGenerator generates dummy card numbers with a valid Luhn digit
func CreditCardGenerator(rng *rand.Rand, original string) string {
	prefixes := []string{"4", "51", "52", "53", "54", "55"}
	num := prefixes[rng.Intn(len(prefixes))]
	for len(num) < 15 {
		num += string(rune('0' + rng.Intn(10)))
	}
	num += string(rune('0' + luhnCheckDigit(num)))

	if rng.Float32() < 0.5 {
		return num
	}
	return fmt.Sprintf("%s %s %s %s", num[0:4], num[4:8], num[8:12], num[12:16])
}

func luhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// DocumentNumberGenerator generates dummy ID card or passport numbers
func DocumentNumberGenerator(rng *rand.Rand, original string) string {
	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = byte('A' + rng.Intn(26))
	}
	if rng.Float32() < 0.3 {
		// passport: two letters, seven digits
		return fmt.Sprintf("%s%07d", letters[:2], rng.Intn(10000000))
	}
	return fmt.Sprintf("%s %06d", letters, rng.Intn(1000000))
}

// DateGenerator generates dummy dates
func DateGenerator(rng *rand.Rand, original string) string {
	return formatDate(rng, 2000+rng.Intn(26), original)
}

// DateOfBirthGenerator generates dummy dates of birth
func DateOfBirthGenerator(rng *rand.Rand, original string) string {
	return formatDate(rng, 1950+rng.Intn(55), original)
}

func formatDate(rng *rand.Rand, year int, original string) string {
	month := 1 + rng.Intn(12)
	day := 1 + rng.Intn(28)

	// Keep the separator of the original when it looks like DD.MM.YYYY
	if len(original) > 2 && (original[2] == '.' || original[2] == '-' || original[2] == '/') {
		sep := string(original[2])
		return fmt.Sprintf("%02d%s%02d%s%d", day, sep, month, sep, year)
	}

	if rng.Float32() < 0.3 {
		return fmt.Sprintf("%d-%02d-%02d", year, month, day)
	}
	return fmt.Sprintf("%02d.%02d.%d", day, month, year)
}

// UsernameGenerator generates dummy usernames
func UsernameGenerator(rng *rand.Rand, original string) string {
	prefixes := []string{"user", "gosc", "klient", "tester", "demo", "konto", "czytelnik"}
	return fmt.Sprintf("%s%d", prefixes[rng.Intn(len(prefixes))], 1000+rng.Intn(9000))
}

// SecretGenerator generates dummy passwords and tokens
func SecretGenerator(rng *rand.Rand, original string) string {
	chars := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"
	length := 10 + rng.Intn(7)

	secret := make([]byte, length)
	for i := range secret {
		secret[i] = chars[rng.Intn(len(chars))]
	}
	return string(secret)
}

// CompanyGenerator generates dummy company names
func CompanyGenerator(rng *rand.Rand, original string) string {
	prefixes := []string{"Polmex", "Budrex", "Transbud", "Agromax", "Elektrobud", "Infotech", "Mazovia", "Baltica", "Silesia", "Warta"}
	suffixes := []string{"Sp. z o.o.", "S.A.", "Sp. j.", "Sp. k."}
	return fmt.Sprintf("%s %s", prefixes[rng.Intn(len(prefixes))], suffixes[rng.Intn(len(suffixes))])
}

// SchoolNameGenerator generates dummy school names
func SchoolNameGenerator(rng *rand.Rand, original string) string {
	kinds := []string{"Szkoła Podstawowa nr", "Liceum Ogólnokształcące nr", "Technikum nr", "Zespół Szkół nr"}
	return fmt.Sprintf("%s %d w %s", kinds[rng.Intn(len(kinds))], 1+rng.Intn(40), cities[rng.Intn(len(cities))])
}

// JobTitleGenerator generates dummy job titles
func JobTitleGenerator(rng *rand.Rand, original string) string {
	titles := []string{"księgowa", "kierownik projektu", "programista", "nauczycielka", "kierowca", "inżynier budowy", "specjalista ds. kadr", "magazynier"}
	return titles[rng.Intn(len(titles))]
}

// RelativeGenerator generates dummy family relations
func RelativeGenerator(rng *rand.Rand, original string) string {
	relatives := []string{"mama", "tata", "brat", "siostra", "babcia", "dziadek", "żona", "mąż", "syn", "córka"}
	return relatives[rng.Intn(len(relatives))]
}

// HealthGenerator generates dummy health conditions
func HealthGenerator(rng *rand.Rand, original string) string {
	conditions := []string{"cukrzyca typu 2", "astma", "nadciśnienie", "depresja", "alergia na orzechy", "migrena"}
	return conditions[rng.Intn(len(conditions))]
}

// ReligionGenerator generates dummy religions
func ReligionGenerator(rng *rand.Rand, original string) string {
	religions := []string{"katolik", "prawosławna", "ewangelik", "ateista", "buddystka", "muzułmanin"}
	return religions[rng.Intn(len(religions))]
}

// PoliticalViewGenerator generates dummy political views
func PoliticalViewGenerator(rng *rand.Rand, original string) string {
	views := []string{"konserwatywne", "liberalne", "lewicowe", "prawicowe", "centrowe"}
	return views[rng.Intn(len(views))]
}

// SexGenerator generates dummy sex values
func SexGenerator(rng *rand.Rand, original string) string {
	values := []string{"kobieta", "mężczyzna"}
	return values[rng.Intn(len(values))]
}

// EthnicityGenerator generates dummy ethnicities
func EthnicityGenerator(rng *rand.Rand, original string) string {
	values := []string{"Ślązak", "Kaszubka", "Ukrainiec", "Romka", "Łemko", "Białorusinka"}
	return values[rng.Intn(len(values))]
}

// SexualOrientationGenerator generates dummy sexual orientations
func SexualOrientationGenerator(rng *rand.Rand, original string) string {
	values := []string{"heteroseksualny", "homoseksualna", "biseksualny", "aseksualna"}
	return values[rng.Intn(len(values))]
}

// GenericGenerator is a fallback generator for unknown types
func GenericGenerator(rng *rand.Rand, original string) string {
	return "[REDACTED]"
}

var asciiFolds = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n", "ó", "o", "ś", "s", "ź", "z", "ż", "z",
)

func asciiFold(s string) string {
	return asciiFolds.Replace(s)
}
