package analysis

import (
	"fmt"

	"github.com/parseldeger/imar/internal/models"
)

// SystemPrompt frames the model as a zoning expert answering in plain text.
const SystemPrompt = "Sen arsa ve gayrimenkul imar mevzuatı konusunda uzman bir danışmansın. " +
	"Sana verilen parsel bilgilerini ve internet arama sonuçlarını kullanarak Türkçe, " +
	"profesyonel bir imar durumu değerlendirmesi yazarsın. Markdown kullanmazsın; " +
	"başlıkları büyük harfle yazarsın. KAK, TAKS, emsal ve kat yüksekliği gibi " +
	"yapılaşma değerlerini mutlaka belirtirsin."

const promptTemplate = `Aşağıdaki parsel için ayrıntılı bir imar durumu analizi hazırla.

PARSEL
%s

ARAMA SONUÇLARI
%s

Yanıtında şu başlıklar bulunsun:

1. İMAR DURUMU
   Plan durumu, alan kullanımı (konut, ticaret, karma, tarım vb.)

2. YAPILAŞMA KOŞULLARI
   KAK, TAKS, emsal, azami kat adedi, yapı yüksekliği, inşaat alanı

3. BÖLGE ÖZELLİKLERİ
   Konum, çevredeki gelişmeler, ulaşım

4. DİKKAT EDİLECEK HUSUSLAR
   Kısıtlamalar, yasal düzenlemeler, riskler ve fırsatlar

5. GENEL DEĞERLENDİRME
   Özet ve yatırım potansiyeli

Teknik değerler arama sonuçlarında yoksa bunu açıkça yaz ve kesin bilgi için ilgili belediyenin imar müdürlüğüne başvurulması gerektiğini belirt. Düz metin kullan.`

// BuildPrompt renders the user prompt for p with the search evidence.
func BuildPrompt(p models.Property, evidence string) string {
	return fmt.Sprintf(promptTemplate, p.Summary(), evidence)
}
